// Package catalog содержит справочник услуг прачечной: цены и цепочки статусов.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrInvalidEntry возвращается, если запись справочника нарушает инварианты.
var ErrInvalidEntry = errors.New("invalid catalog entry")

// Entry описывает одну услугу.
type Entry struct {
	ID          string
	DisplayName string
	UnitPrice   decimal.Decimal
	Workflow    []string
}

// InitialStatus возвращает первый статус цепочки.
func (e Entry) InitialStatus() string {
	return e.Workflow[0]
}

// TerminalStatus возвращает последний статус цепочки ("выдано клиенту").
func (e Entry) TerminalStatus() string {
	return e.Workflow[len(e.Workflow)-1]
}

// IndexOf возвращает позицию статуса в цепочке или -1.
func (e Entry) IndexOf(status string) int {
	for i, s := range e.Workflow {
		if s == status {
			return i
		}
	}
	return -1
}

// NextStatuses возвращает все статусы после текущего.
func (e Entry) NextStatuses(status string) []string {
	idx := e.IndexOf(status)
	if idx < 0 || idx+1 >= len(e.Workflow) {
		return []string{}
	}
	out := make([]string, len(e.Workflow)-idx-1)
	copy(out, e.Workflow[idx+1:])
	return out
}

func (e Entry) validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEntry)
	}
	if e.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: %s: negative price", ErrInvalidEntry, e.ID)
	}
	if len(e.Workflow) < 2 {
		return fmt.Errorf("%w: %s: workflow needs at least two statuses", ErrInvalidEntry, e.ID)
	}
	seen := make(map[string]struct{}, len(e.Workflow))
	for _, s := range e.Workflow {
		if s == "" {
			return fmt.Errorf("%w: %s: empty status", ErrInvalidEntry, e.ID)
		}
		if _, ok := seen[s]; ok {
			return fmt.Errorf("%w: %s: duplicate status %q", ErrInvalidEntry, e.ID, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// Catalog содержит справочник услуг, неизменяемый после создания.
type Catalog struct {
	entries map[string]Entry
	ids     []string
}

// New создаёт справочник и проверяет каждую запись.
func New(entries ...Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return nil, err
		}
		if _, ok := c.entries[e.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidEntry, e.ID)
		}
		wf := make([]string, len(e.Workflow))
		copy(wf, e.Workflow)
		e.Workflow = wf
		c.entries[e.ID] = e
		c.ids = append(c.ids, e.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// Get возвращает услугу по идентификатору.
func (c *Catalog) Get(id string) (Entry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// Entries возвращает все услуги, упорядоченные по идентификатору.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.entries[id])
	}
	return out
}

// Default возвращает стандартный справочник услуг.
func Default() *Catalog {
	c, err := New(
		Entry{
			ID:          "wash_and_fold",
			DisplayName: "Wash and Fold",
			UnitPrice:   decimal.NewFromInt(10),
			Workflow:    []string{"pending", "started", "washing", "folding", "ready_for_pickup", "picked_up"},
		},
		Entry{
			ID:          "wash_and_iron",
			DisplayName: "Wash and Iron",
			UnitPrice:   decimal.NewFromInt(25),
			Workflow:    []string{"pending", "started", "washing", "ironing", "ready_for_pickup", "picked_up"},
		},
		Entry{
			ID:          "dry_cleaning",
			DisplayName: "Dry Cleaning",
			UnitPrice:   decimal.NewFromInt(50),
			Workflow:    []string{"pending", "started", "tagging", "pre_treatment", "dry_cleaning", "pressing", "finishing", "ready_for_pickup", "picked_up"},
		},
		Entry{
			ID:          "premium_wash",
			DisplayName: "Premium Wash",
			UnitPrice:   decimal.NewFromInt(40),
			Workflow:    []string{"pending", "started", "inspection", "pre_treatment", "washing", "drying", "quality_check", "ready_for_pickup", "picked_up"},
		},
		Entry{
			ID:          "steam_iron",
			DisplayName: "Steam Iron",
			UnitPrice:   decimal.NewFromInt(15),
			Workflow:    []string{"pending", "started", "steaming", "pressing", "finishing", "ready_for_pickup", "picked_up"},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

type fileEntry struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Price    string   `yaml:"price"`
	Workflow []string `yaml:"workflow"`
}

type fileCatalog struct {
	Services []fileEntry `yaml:"services"`
}

// Parse разбирает справочник в формате YAML.
func Parse(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	entries := make([]Entry, 0, len(fc.Services))
	for _, s := range fc.Services {
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: price %q: %v", ErrInvalidEntry, s.ID, s.Price, err)
		}
		entries = append(entries, Entry{
			ID:          s.ID,
			DisplayName: s.Name,
			UnitPrice:   price,
			Workflow:    s.Workflow,
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: catalog has no services", ErrInvalidEntry)
	}

	return New(entries...)
}

// LoadFile читает справочник из YAML-файла.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}
