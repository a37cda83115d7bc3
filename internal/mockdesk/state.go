package mockdesk

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calvinalkan/tk-desk/internal/state"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// DataKey is the storage key of the saved data set.
const DataKey = "desk-data"

// LoadState returns the data set saved in storage. It returns an error
// wrapping state.ErrNotFound when nothing was saved yet.
func LoadState(ctx context.Context, storage state.Storage) ([]ticket.Ticket, error) {
	data, err := storage.Load(ctx, DataKey)
	if err != nil {
		return nil, fmt.Errorf("load desk data: %w", err)
	}

	var tickets []ticket.Ticket

	err = json.Unmarshal(data, &tickets)
	if err != nil {
		return nil, fmt.Errorf("decode desk data: %w", err)
	}

	return tickets, nil
}

// SaveState writes the backend's data set to storage.
func SaveState(ctx context.Context, storage state.Storage, b *Backend) error {
	data, err := json.Marshal(b.Tickets())
	if err != nil {
		return fmt.Errorf("encode desk data: %w", err)
	}

	err = storage.Save(ctx, DataKey, data)
	if err != nil {
		return fmt.Errorf("save desk data: %w", err)
	}

	return nil
}
