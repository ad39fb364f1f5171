// internal/app/system/txn/txn.go
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server error codes returned when multi-document transactions are unavailable
// (standalone servers, some DocumentDB and emulator deployments).
var unsupportedCodes = map[int32]struct{}{
	20:  {}, // IllegalOperation
	51:  {}, // on some builds: transaction numbers only allowed on replica sets
	263: {}, // OperationNotSupportedInTransaction
}

// keyword pairs that, when both present, indicate missing transaction support.
var unsupportedPhrases = [][2]string{
	{"transaction", "replica set"},
	{"session", "not supported"},
	{"transaction", "session"},
	{"illegal operation", "transaction"},
}

// IsNotSupported reports whether err means the deployment cannot run transactions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		if _, ok := unsupportedCodes[ce.Code]; ok {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range unsupportedPhrases {
		if strings.Contains(msg, p[0]) && strings.Contains(msg, p[1]) {
			return true
		}
	}
	return false
}

// Run executes fn inside a transaction. When the deployment does not support
// transactions, fn runs again without one (against plain ctx) and the
// fallback is logged. A ctx that already carries a session joins the
// caller's transaction.
func Run(ctx context.Context, client *mongo.Client, logger *zap.Logger, fn func(ctx context.Context) error) error {
	if client == nil || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			logger.Info("transactions unavailable; running without", zap.Error(err))
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		logger.Info("transactions unavailable; running without", zap.Error(err))
		return fn(ctx)
	}
	return err
}
