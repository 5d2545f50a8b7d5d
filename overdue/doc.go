// Package overdue finds active loans past their due date and notifies the borrowers.
//
// A Sweeper performs one pass; a Scheduler triggers that pass once a day at a fixed hour.
// On-demand sweeps go through Scheduler.RunOnce or Sweeper.Sweep directly, both use the same code path.
// Sweeps only read the loan ledger and never record which loans were already notified,
// so a loan that stays overdue is notified again on every sweep.
package overdue
