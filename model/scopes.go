package model

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/loom"
)

// insertHooker is implemented by global scopes that massage attributes
// before an insert (UUID key generation).
type insertHooker interface {
	PerformInsert(*Instance) error
}

// deleteOverrider is implemented by global scopes that replace the
// delete statement (soft deletes).
type deleteOverrider interface {
	PerformDelete(ctx context.Context, b *Builder) (int64, bool, error)
}

// SoftDeletes is the global scope marking rows deleted with a timestamp
// instead of removing them. Every query gets WHERE <column> IS NULL;
// Delete is rewritten into an UPDATE setting the column. WithTrashed
// disables the predicate, OnlyTrashed inverts it and ForceDelete
// bypasses the rewrite for one query.
type SoftDeletes struct {
	Column string
}

// NewSoftDeletes returns the scope with the conventional deleted_at
// column.
func NewSoftDeletes(column ...string) *SoftDeletes {
	col := "deleted_at"
	if len(column) > 0 && column[0] != "" {
		col = column[0]
	}
	return &SoftDeletes{Column: col}
}

// ScopeName implements GlobalScope.
func (s *SoftDeletes) ScopeName() string { return "soft_deletes" }

// Apply implements GlobalScope.
func (s *SoftDeletes) Apply(b *Builder) {
	switch {
	case b.onlyTrashed:
		b.qb.WhereNotNull(s.Column)
	case b.withTrashed:
		// No predicate.
	default:
		b.qb.WhereNull(s.Column)
	}
}

// PerformDelete rewrites the delete into a deletion-timestamp update
// unless the builder requested a force delete.
func (s *SoftDeletes) PerformDelete(ctx context.Context, b *Builder) (int64, bool, error) {
	if b.forceDelete {
		return 0, false, nil
	}
	qb, err := b.queryBuilder()
	if err != nil {
		return 0, true, err
	}
	n, err := qb.Update(ctx, map[string]any{
		s.Column: time.Now().In(b.class.timezone),
	})
	return n, true, err
}

var (
	_ GlobalScope     = (*SoftDeletes)(nil)
	_ deleteOverrider = (*SoftDeletes)(nil)
)

// UUIDPrimaryKey is the global scope generating a UUID primary key on
// insert when the key is unset. Versions 1, 3, 4 and 5 are supported;
// versions 3 and 5 hash Namespace and KeyName.
type UUIDPrimaryKey struct {
	Version   int
	Namespace uuid.UUID
	KeyName   string
}

// NewUUIDPrimaryKey returns the scope for the given version, defaulting
// to the random version 4.
func NewUUIDPrimaryKey(version ...int) *UUIDPrimaryKey {
	v := 4
	if len(version) > 0 && version[0] != 0 {
		v = version[0]
	}
	return &UUIDPrimaryKey{Version: v, Namespace: uuid.NameSpaceDNS}
}

// ScopeName implements GlobalScope.
func (s *UUIDPrimaryKey) ScopeName() string { return "uuid_primary_key" }

// Apply implements GlobalScope. The scope only hooks inserts.
func (s *UUIDPrimaryKey) Apply(*Builder) {}

// PerformInsert fills the primary key with a generated UUID when unset.
func (s *UUIDPrimaryKey) PerformInsert(m *Instance) error {
	pk := m.class.primaryKey
	if v, ok := m.attributes[pk]; ok && v != nil && v != "" {
		return nil
	}
	id, err := s.generate()
	if err != nil {
		return err
	}
	m.attributes[pk] = id.String()
	return nil
}

func (s *UUIDPrimaryKey) generate() (uuid.UUID, error) {
	switch s.Version {
	case 1:
		return uuid.NewUUID()
	case 3:
		return uuid.NewMD5(s.Namespace, []byte(s.KeyName)), nil
	case 4, 0:
		return uuid.New(), nil
	case 5:
		return uuid.NewSHA1(s.Namespace, []byte(s.KeyName)), nil
	}
	return uuid.Nil, loom.NewConfigurationError("unsupported uuid version %d", s.Version)
}

var (
	_ GlobalScope  = (*UUIDPrimaryKey)(nil)
	_ insertHooker = (*UUIDPrimaryKey)(nil)
)
