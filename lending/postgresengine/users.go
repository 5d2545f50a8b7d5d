package postgresengine

import (
	"context"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine/internal/adapters"
)

// CreateUser registers a borrower. A duplicate username is reported as lending.ErrConflict.
func (e *Engine) CreateUser(ctx context.Context, draft lending.UserDraft) (lending.User, error) {
	observer, ctx := e.observe(ctx, spanNameCatalog, operationUsers, nil)

	if err := draft.Validate(); err != nil {
		return lending.User{}, observer.finish(err)
	}

	userID, err := uuid.NewV7()
	if err != nil {
		return lending.User{}, observer.finish(err)
	}

	user := lending.User{
		ID:        userID,
		Username:  strings.TrimSpace(draft.Username),
		FullName:  strings.TrimSpace(draft.FullName),
		Email:     strings.TrimSpace(draft.Email),
		CreatedAt: e.now(),
	}

	insertStmt := builder().
		Insert(e.tables.Users).
		Rows(goqu.Record{
			colID:        uuidLiteral(user.ID),
			colUsername:  user.Username,
			colFullName:  user.FullName,
			colEmail:     user.Email,
			colCreatedAt: user.CreatedAt,
		})

	if _, err = e.exec(ctx, e.db, insertStmt, actionInsertUser); err != nil {
		if isUniqueViolation(err) {
			return lending.User{}, observer.finish(lending.Conflictf("username %s is taken", user.Username))
		}

		return lending.User{}, observer.finish(storeError(err))
	}

	e.logOperation(ctx, actionInsertUser, logAttrUserID, user.ID.String())

	return user, observer.finish(nil)
}

// FindUserByID returns a user or lending.ErrUserNotFound.
func (e *Engine) FindUserByID(ctx context.Context, userID uuid.UUID) (lending.User, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{
		spanAttrQuery:  "user_by_id",
		spanAttrUserID: userID.String(),
	})

	user, err := e.findUser(ctx, e.db, userID)

	return user, observer.finish(err)
}

// FindUserByUsername returns the user with the given username or lending.ErrUserNotFound.
func (e *Engine) FindUserByUsername(ctx context.Context, username string) (lending.User, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{spanAttrQuery: "user_by_username"})

	rows, err := e.query(ctx, e.db, e.userSelect().Where(goqu.C(colUsername).Eq(strings.TrimSpace(username))), actionSelectUser)
	if err != nil {
		return lending.User{}, observer.finish(err)
	}

	user, err := first(rows, scanUser, lending.ErrUserNotFound)

	return user, observer.finish(err)
}

// ListUsers returns all users ordered by username.
func (e *Engine) ListUsers(ctx context.Context) ([]lending.User, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{spanAttrQuery: "list_users"})

	rows, err := e.query(ctx, e.db, e.userSelect().Order(goqu.C(colUsername).Asc()), actionSelectUser)
	if err != nil {
		return nil, observer.finish(err)
	}

	users, err := collect(rows, scanUser)

	return users, observer.finish(err)
}

// UpdateUser replaces username, full name and email of a user.
// Later overdue notices go to the new email. A taken username is reported as lending.ErrConflict.
func (e *Engine) UpdateUser(ctx context.Context, userID uuid.UUID, draft lending.UserDraft) (lending.User, error) {
	observer, ctx := e.observe(ctx, spanNameCatalog, operationUsers, map[string]string{spanAttrUserID: userID.String()})

	if err := draft.Validate(); err != nil {
		return lending.User{}, observer.finish(err)
	}

	var user lending.User

	err := e.withinTransaction(ctx, func(tx adapters.DBTx) error {
		current, err := e.findUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		user = current
		user.Username = strings.TrimSpace(draft.Username)
		user.FullName = strings.TrimSpace(draft.FullName)
		user.Email = strings.TrimSpace(draft.Email)

		updateStmt := builder().
			Update(e.tables.Users).
			Set(goqu.Record{
				colUsername: user.Username,
				colFullName: user.FullName,
				colEmail:    user.Email,
			}).
			Where(goqu.C(colID).Eq(uuidLiteral(userID)))

		if _, err = e.exec(ctx, tx, updateStmt, actionUpdateUser); err != nil {
			if isUniqueViolation(err) {
				return lending.Conflictf("username %s is taken", user.Username)
			}

			return storeError(err)
		}

		return nil
	})

	if err != nil {
		return lending.User{}, observer.finish(err)
	}

	e.logOperation(ctx, actionUpdateUser, logAttrUserID, userID.String())

	return user, observer.finish(nil)
}

// DeleteUser removes a user without active loans together with their returned loans, the ledger keeps
// its events. A user with active loans is rejected with lending.ErrConflict.
//
// The user row is locked first, so a concurrent Lend to the same user either finishes before
// and makes the delete fail, or waits and then fails with lending.ErrUserNotFound.
func (e *Engine) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	observer, ctx := e.observe(ctx, spanNameCatalog, operationUsers, map[string]string{spanAttrUserID: userID.String()})

	err := e.withinTransaction(ctx, func(tx adapters.DBTx) error {
		if _, err := e.lockUser(ctx, tx, userID, exp.ForUpdate); err != nil {
			return err
		}

		countStmt := builder().
			From(e.tables.Loans).
			Select(goqu.COUNT(goqu.Star())).
			Where(
				goqu.C(colUserID).Eq(uuidLiteral(userID)),
				goqu.C(colReturnDate).IsNull(),
			)

		rows, err := e.query(ctx, tx, countStmt, actionCountActive)
		if err != nil {
			return err
		}

		activeLoans, err := first(rows, scanCount, lending.ErrUserNotFound)
		if err != nil {
			return err
		}

		if activeLoans > 0 {
			return lending.Conflictf("user %s still has %d active loans", userID, activeLoans)
		}

		deleteStmt := builder().
			Delete(e.tables.Users).
			Where(goqu.C(colID).Eq(uuidLiteral(userID)))

		if _, err = e.exec(ctx, tx, deleteStmt, actionDeleteUser); err != nil {
			return storeError(err)
		}

		return nil
	})

	if err == nil {
		e.logOperation(ctx, actionDeleteUser, logAttrUserID, userID.String())
	}

	return observer.finish(err)
}

func (e *Engine) userSelect() *goqu.SelectDataset {
	return builder().
		From(e.tables.Users).
		Select(
			goqu.C(colID),
			goqu.C(colUsername),
			goqu.C(colFullName),
			goqu.C(colEmail),
			goqu.C(colCreatedAt),
		)
}

func (e *Engine) findUser(ctx context.Context, q adapters.Querier, userID uuid.UUID) (lending.User, error) {
	rows, err := e.query(ctx, q, e.userSelect().Where(goqu.C(colID).Eq(uuidLiteral(userID))), actionSelectUser)
	if err != nil {
		return lending.User{}, err
	}

	return first(rows, scanUser, lending.ErrUserNotFound)
}

// lockUser reads a user and holds a row lock of the given strength until the transaction ends.
// Lend takes FOR KEY SHARE, which only conflicts with DeleteUser's FOR UPDATE.
func (e *Engine) lockUser(ctx context.Context, tx adapters.DBTx, userID uuid.UUID, strength exp.LockStrength) (lending.User, error) {
	selectStmt := e.userSelect().
		Where(goqu.C(colID).Eq(uuidLiteral(userID)))

	switch strength {
	case exp.ForKeyShare:
		selectStmt = selectStmt.ForKeyShare(exp.Wait)
	default:
		selectStmt = selectStmt.ForUpdate(exp.Wait)
	}

	rows, err := e.query(ctx, tx, selectStmt, actionLockUser)
	if err != nil {
		return lending.User{}, err
	}

	return first(rows, scanUser, lending.ErrUserNotFound)
}
