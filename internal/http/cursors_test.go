package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/catalog-notifier/internal/model"
	"github.com/shelfwise/catalog-notifier/internal/repository"
)

type fakeCursors struct {
	rows map[string]*model.Cursor // key: org|consumer
}

func newFakeCursors() *fakeCursors { return &fakeCursors{rows: map[string]*model.Cursor{}} }

func cursorKey(orgID uuid.UUID, consumerID string) string { return orgID.String() + "|" + consumerID }

func (f *fakeCursors) Get(_ context.Context, orgID uuid.UUID, consumerID string) (*model.Cursor, error) {
	cur, ok := f.rows[cursorKey(orgID, consumerID)]
	if !ok {
		return nil, nil
	}
	cp := *cur
	return &cp, nil
}

func (f *fakeCursors) ListByOrg(_ context.Context, orgID uuid.UUID) ([]model.Cursor, error) {
	var out []model.Cursor
	for _, cur := range f.rows {
		if cur.OrgID == orgID {
			out = append(out, *cur)
		}
	}
	return out, nil
}

func (f *fakeCursors) Advance(_ context.Context, orgID uuid.UUID, consumerID string, eventID int64, at time.Time) (*model.Cursor, error) {
	k := cursorKey(orgID, consumerID)
	cur, ok := f.rows[k]
	if !ok {
		cur = &model.Cursor{OrgID: orgID, ConsumerID: consumerID}
		f.rows[k] = cur
	}
	if eventID > cur.LastEventID {
		cur.LastEventID = eventID
	}
	cur.LastDeliveredAt = at
	cur.UpdatedAt = time.Now().UTC()
	cp := *cur
	return &cp, nil
}

var _ repository.CursorsRepository = (*fakeCursors)(nil)

func TestAdvanceCursorHandler(t *testing.T) {
	orgID := uuid.New()
	cursors := newFakeCursors()
	h := advanceCursorHandler(cursors)

	t.Run("first advance creates and moves", func(t *testing.T) {
		c, rec := newJSONContext(t, http.MethodPut, "/", `{"event_id":42}`, orgID)
		c.SetParamNames("consumer")
		c.SetParamValues("mobile-app")
		require.NoError(t, h(c))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["moved"])
	})

	t.Run("replay behind the cursor does not move", func(t *testing.T) {
		c, rec := newJSONContext(t, http.MethodPut, "/", `{"event_id":7}`, orgID)
		c.SetParamNames("consumer")
		c.SetParamValues("mobile-app")
		require.NoError(t, h(c))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["moved"])

		cursor, ok := body["cursor"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(42), cursor["last_event_id"])
	})

	t.Run("zero event_id rejected", func(t *testing.T) {
		c, rec := newJSONContext(t, http.MethodPut, "/", `{"event_id":0}`, orgID)
		c.SetParamNames("consumer")
		c.SetParamValues("mobile-app")
		require.NoError(t, h(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListCursorsHandlerScopedToOrg(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	cursors := newFakeCursors()
	_, err := cursors.Advance(context.Background(), orgA, "mobile-app", 10, time.Now())
	require.NoError(t, err)
	_, err = cursors.Advance(context.Background(), orgB, "mobile-app", 99, time.Now())
	require.NoError(t, err)

	c, rec := newJSONContext(t, http.MethodGet, "/v1/outbox/cursors", "", orgA)
	require.NoError(t, listCursorsHandler(cursors)(c))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}
