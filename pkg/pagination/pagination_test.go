package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-5))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
}

func TestCursorRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()

	encoded := EncodeCursor(Cursor{CreatedAt: now, ID: id})
	parsed, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, parsed.CreatedAt.Equal(now))
	assert.Equal(t, id, parsed.ID)
}

func TestParseCursorEmpty(t *testing.T) {
	parsed, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, parsed)
}

func TestParseCursorInvalid(t *testing.T) {
	_, err := ParseCursor("not-base64!!")
	assert.Error(t, err)

	_, err = ParseCursor("bm8tcGlwZQ==")
	assert.Error(t, err)
}

func TestTrimPage(t *testing.T) {
	type row struct {
		createdAt time.Time
		id        uuid.UUID
	}

	base := time.Now().UTC()
	rows := make([]row, 11)
	for i := range rows {
		rows[i] = row{createdAt: base.Add(-time.Duration(i) * time.Minute), id: uuid.New()}
	}

	trimmed, next := TrimPage(rows, 10, func(r row) Cursor {
		return Cursor{CreatedAt: r.createdAt, ID: r.id}
	})
	require.Len(t, trimmed, 10)
	require.NotEmpty(t, next)

	cursor, err := ParseCursor(next)
	require.NoError(t, err)
	assert.Equal(t, rows[9].id, cursor.ID)

	trimmed, next = TrimPage(rows[:3], 10, func(r row) Cursor {
		return Cursor{CreatedAt: r.createdAt, ID: r.id}
	})
	assert.Len(t, trimmed, 3)
	assert.Empty(t, next)
}
