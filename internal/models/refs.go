package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

// UserRef is a reference to a user. Only ID is persisted; the descriptive
// fields are filled in when a repository populates the reference.
type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name,omitempty"`
	Title string    `json:"title,omitempty"`
	Role  string    `json:"role,omitempty"`
	Email string    `json:"email,omitempty"`
}

func RefsFromIDs(ids []uuid.UUID) Team {
	team := make(Team, 0, len(ids))
	for _, id := range ids {
		team = append(team, UserRef{ID: id})
	}
	return team
}

// Team is an ordered list of user references stored as a JSON array of ids.
type Team []UserRef

func (t Team) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t))
	for _, ref := range t {
		ids = append(ids, ref.ID)
	}
	return ids
}

func (t Team) Value() (driver.Value, error) {
	data, err := json.Marshal(t.IDs())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal team: %w", err)
	}
	return string(data), nil
}

func (t *Team) Scan(src interface{}) error {
	data, err := columnBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*t = Team{}
		return nil
	}

	var ids []uuid.UUID
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("failed to unmarshal team: %w", err)
	}
	*t = RefsFromIDs(ids)
	return nil
}

const (
	ActivityAssigned   = "assigned"
	ActivityStarted    = "started"
	ActivityInProgress = "in progress"
	ActivityBug        = "bug"
	ActivityCompleted  = "completed"
	ActivityCommented  = "commented"
	ActivityPullUpFor  = "pull up for"
)

var activityTypes = map[string]bool{
	ActivityAssigned:   true,
	ActivityStarted:    true,
	ActivityInProgress: true,
	ActivityBug:        true,
	ActivityCompleted:  true,
	ActivityCommented:  true,
	ActivityPullUpFor:  true,
}

// NormalizeActivityType lowercases the type and accepts hyphenated spellings
// ("in-progress", "pull-up-for"). Blank types become "assigned".
func NormalizeActivityType(activityType string) string {
	s := strings.ToLower(strings.TrimSpace(activityType))
	if s == "" {
		return ActivityAssigned
	}
	return strings.ReplaceAll(s, "-", " ")
}

func IsKnownActivityType(activityType string) bool {
	return activityTypes[activityType]
}

type Activity struct {
	Type     string    `json:"type"`
	Activity string    `json:"activity"`
	Date     time.Time `json:"date"`
	By       UserRef   `json:"by"`
}

type activityRecord struct {
	Type     string    `json:"type"`
	Activity string    `json:"activity"`
	Date     time.Time `json:"date"`
	By       uuid.UUID `json:"by"`
}

// Activities is the append-only activity log of a task.
type Activities []Activity

func (a Activities) Value() (driver.Value, error) {
	records := make([]activityRecord, 0, len(a))
	for _, act := range a {
		records = append(records, activityRecord{
			Type:     act.Type,
			Activity: act.Activity,
			Date:     act.Date,
			By:       act.By.ID,
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activities: %w", err)
	}
	return string(data), nil
}

func (a *Activities) Scan(src interface{}) error {
	data, err := columnBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*a = Activities{}
		return nil
	}

	var records []activityRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal activities: %w", err)
	}
	acts := make(Activities, 0, len(records))
	for _, r := range records {
		acts = append(acts, Activity{
			Type:     r.Type,
			Activity: r.Activity,
			Date:     r.Date,
			By:       UserRef{ID: r.By},
		})
	}
	*a = acts
	return nil
}

func columnBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}
