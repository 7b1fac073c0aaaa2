package stubserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/freight-booking/internal/models"
)

func seedOrder(t *testing.T, store *MemoryStore) *models.Order {
	t.Helper()
	o := &models.Order{
		ID:         "o-1",
		CustomerID: "c-1",
		Items:      []models.OrderItem{{ID: "i-1", WeightKg: 1000, Status: models.StatusCreated}},
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.SaveOrder(o))
	return o
}

func TestUpdateItemRequiresExpectedStatus(t *testing.T) {
	store := NewMemoryStore()
	seedOrder(t, store)

	got, err := store.UpdateItem("o-1", "i-1", models.StatusCreated, models.StatusAccepted, "d-1", "Binh")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Items[0].Status)
	assert.Equal(t, "d-1", got.Items[0].DriverID)

	// the second driver's write must not go through: the item already left
	// the expected status
	_, err = store.UpdateItem("o-1", "i-1", models.StatusCreated, models.StatusAccepted, "d-2", "Chau")
	require.ErrorIs(t, err, errStatusConflict)

	got, err = store.GetOrder("o-1")
	require.NoError(t, err)
	assert.Equal(t, "d-1", got.Items[0].DriverID)
	assert.Equal(t, "Binh", got.Items[0].DriverName)
}

func TestUpdateItemUnknownItemIsNotFound(t *testing.T) {
	store := NewMemoryStore()
	seedOrder(t, store)

	_, err := store.UpdateItem("o-1", "nope", models.StatusCreated, models.StatusAccepted, "d-1", "Binh")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.UpdateItem("nope", "i-1", models.StatusCreated, models.StatusAccepted, "d-1", "Binh")
	assert.ErrorIs(t, err, ErrNotFound)
}
