package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Messages struct {
	CategoryOverspent MessageText `json:"category_overspent"`
	BalanceDrift      MessageText `json:"balance_drift"`
}

var (
	loaded   Messages
	loadOnce sync.Once
	loadErr  error
)

// Load reads the alert texts JSON file and caches the result.
// Safe to call from multiple goroutines.
func Load(path string) (*Messages, error) {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read messages file: %w", err)
			return
		}
		if err := json.Unmarshal(data, &loaded); err != nil {
			loadErr = fmt.Errorf("failed to parse messages file: %w", err)
		}
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return &loaded, nil
}

// Defaults returns the built-in alert texts, used when no messages file is
// configured.
func Defaults() *Messages {
	return &Messages{
		CategoryOverspent: MessageText{
			Title: "Category overspent",
			Body:  "%s is overspent by %s this month.",
		},
		BalanceDrift: MessageText{
			Title: "Balance drift detected",
			Body:  "%s cached balance differs from its postings by %s.",
		},
	}
}
