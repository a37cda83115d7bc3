package mockdesk

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// ErrInvalidFixture is returned when a fixture file cannot be used.
var ErrInvalidFixture = errors.New("invalid fixture")

// Fixture is the on-disk shape of a ticket data set.
type Fixture struct {
	Tickets []ticket.Ticket `yaml:"tickets"`
}

// LoadFixture reads tickets from a YAML file.
func LoadFixture(path string) ([]ticket.Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	return ParseFixture(data)
}

// ParseFixture decodes a fixture document. Ticket ids must be positive
// and unique, and statuses and priorities must be known values.
func ParseFixture(data []byte) ([]ticket.Ticket, error) {
	var f Fixture

	err := yaml.Unmarshal(data, &f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}

	seen := make(map[int64]bool, len(f.Tickets))

	for i, t := range f.Tickets {
		switch {
		case t.ID <= 0:
			return nil, fmt.Errorf("%w: ticket %d: id must be positive", ErrInvalidFixture, i)
		case seen[t.ID]:
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidFixture, t.ID)
		case !ticket.IsValidStatus(t.Status):
			return nil, fmt.Errorf("%w: ticket %d: %w: %q", ErrInvalidFixture, t.ID, ticket.ErrInvalidStatus, t.Status)
		case !ticket.IsValidPriority(t.Priority):
			return nil, fmt.Errorf("%w: ticket %d: %w: %q", ErrInvalidFixture, t.ID, ticket.ErrInvalidPriority, t.Priority)
		}

		seen[t.ID] = true

		if t.TicketNumber == "" {
			f.Tickets[i].TicketNumber = ticketNumber(t.ID)
		}
	}

	return f.Tickets, nil
}

// MarshalFixture encodes tickets as a YAML fixture document.
func MarshalFixture(tickets []ticket.Ticket) ([]byte, error) {
	data, err := yaml.Marshal(Fixture{Tickets: tickets})
	if err != nil {
		return nil, fmt.Errorf("marshal fixture: %w", err)
	}

	return data, nil
}
