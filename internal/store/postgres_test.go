package store

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

type fakeResult struct {
	affected int64
	err      error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, r.err }

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(errors.Wrap(&pq.Error{Code: "23505"}, "insert")))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}

func TestRequireAffected(t *testing.T) {
	assert.NoError(t, requireAffected(fakeResult{affected: 1}, "user %d", 7))

	err := requireAffected(fakeResult{affected: 0}, "user %d", 7)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "user 7")

	assert.Error(t, requireAffected(fakeResult{err: errors.New("driver")}, "user %d", 7))
}

func TestSchemaDefinesTables(t *testing.T) {
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS users")
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS audit_logs")
}
