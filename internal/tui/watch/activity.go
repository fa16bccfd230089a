package watch

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"github.com/mattjoyce/hookd/internal/events"
	"github.com/mattjoyce/hookd/internal/hooks"
	"github.com/mattjoyce/hookd/internal/host"
)

// LibraryActivity counts one library's callouts on one hook.
type LibraryActivity struct {
	Calls   int
	NonZero int
}

// HookActivity tracks one hook, seeded from /hooks and updated from
// dispatch events.
type HookActivity struct {
	Name         string
	Index        int
	Callouts     int
	Dispatches   int
	LastStatus   int
	LastDuration time.Duration
	LastAt       time.Time
	Libraries    map[int]*LibraryActivity
}

// Activity aggregates dispatch records per hook and library.
type Activity struct {
	libraries  []string
	hooks      map[string]*HookActivity
	dispatches int
	nonZero    int
}

func NewActivity() *Activity {
	return &Activity{hooks: make(map[string]*HookActivity)}
}

// Seed records library names and the registered hooks so idle hooks are
// listed too.
func (a *Activity) Seed(libraries []string, table []host.HookInfo) {
	a.libraries = slices.Clone(libraries)
	for _, info := range table {
		h := a.hook(info.Name, info.Index)
		h.Callouts = 0
		for _, names := range info.Callouts {
			h.Callouts += len(names)
		}
	}
}

func (a *Activity) hook(name string, index int) *HookActivity {
	h, ok := a.hooks[name]
	if !ok {
		h = &HookActivity{Name: name, Index: index, Libraries: make(map[int]*LibraryActivity)}
		a.hooks[name] = h
	}
	return h
}

// Record folds one dispatch into the counters.
func (a *Activity) Record(rec hooks.DispatchRecord) {
	h := a.hook(rec.Hook, rec.HookIndex)
	h.Dispatches++
	h.LastStatus = rec.Status
	h.LastDuration = rec.Duration
	h.LastAt = rec.Started
	a.dispatches++
	if rec.Status != 0 {
		a.nonZero++
	}

	for _, c := range rec.Callouts {
		lib, ok := h.Libraries[c.Library]
		if !ok {
			lib = &LibraryActivity{}
			h.Libraries[c.Library] = lib
		}
		lib.Calls++
		if c.Status != 0 {
			lib.NonZero++
		}
	}
}

// Dispatches returns the total and nonzero-status dispatch counts.
func (a *Activity) Dispatches() (total, nonZero int) {
	return a.dispatches, a.nonZero
}

// Hooks returns the tracked hooks ordered by index.
func (a *Activity) Hooks() []*HookActivity {
	out := make([]*HookActivity, 0, len(a.hooks))
	for _, h := range a.hooks {
		out = append(out, h)
	}
	slices.SortFunc(out, func(x, y *HookActivity) int {
		if x.Index != y.Index {
			return x.Index - y.Index
		}
		return strings.Compare(x.Name, y.Name)
	})
	return out
}

func (a *Activity) libraryName(index int) string {
	if index >= 0 && index < len(a.libraries) {
		return a.libraries[index]
	}
	return fmt.Sprintf("lib%d", index)
}

// Rows renders the activity for the hook table.
func (a *Activity) Rows(theme Theme) []table.Row {
	hooksByIndex := a.Hooks()
	rows := make([]table.Row, 0, len(hooksByIndex))
	for _, h := range hooksByIndex {
		sym := theme.Dim.Render("○")
		switch {
		case h.Dispatches == 0:
		case h.LastStatus != 0:
			sym = theme.StatusFailed.Render("●")
		default:
			sym = theme.StatusOK.Render("●")
		}

		last := "-"
		if h.Dispatches > 0 {
			last = fmt.Sprintf("%d in %s", h.LastStatus, h.LastDuration.Round(time.Microsecond))
		}

		rows = append(rows, table.Row{
			sym,
			h.Name,
			fmt.Sprintf("%d", h.Callouts),
			fmt.Sprintf("%d", h.Dispatches),
			last,
			a.libraryColumn(h),
		})
	}
	return rows
}

// libraryColumn lists calls per library in slot order, with nonzero
// statuses after a slash.
func (a *Activity) libraryColumn(h *HookActivity) string {
	slots := make([]int, 0, len(h.Libraries))
	for slot := range h.Libraries {
		slots = append(slots, slot)
	}
	slices.Sort(slots)

	parts := make([]string, 0, len(slots))
	for _, slot := range slots {
		lib := h.Libraries[slot]
		part := fmt.Sprintf("%s %d", a.libraryName(slot), lib.Calls)
		if lib.NonZero > 0 {
			part += fmt.Sprintf("/%d", lib.NonZero)
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "  ")
}

// decodeDispatch extracts the dispatch record carried by a dispatch event.
func decodeDispatch(e events.Event) (hooks.DispatchRecord, bool) {
	var rec hooks.DispatchRecord
	if e.Type != events.DispatchEvent {
		return rec, false
	}
	if err := json.Unmarshal(e.Data, &rec); err != nil || rec.Hook == "" {
		return rec, false
	}
	return rec, true
}
