package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"mouzamap.org/internal/selection"
)

const (
	maxSelectionBody  = 4 << 10
	maxLayerNameRunes = 64
)

// SelectionEntry is the selection snapshot returned by the API.
type SelectionEntry struct {
	Seq   uint64          `json:"seq"`
	State selection.State `json:"state"`
}

func (api *RestAPI) getSelectionHandler(w http.ResponseWriter, r *http.Request) {
	api.sendResponse(w, r, newEntryResponse(api.selectionEntry(), api.Clock))
}

func (api *RestAPI) selectionEntry() SelectionEntry {
	state, seq := api.Selection.Current()
	return SelectionEntry{Seq: seq, State: state}
}

// putSelectionHandler applies a partial update. Keys that are absent are
// left alone and null clears a slot. District is applied before mouza, so
// {"district": "D", "mouza": "M"} ends with both selected.
func (api *RestAPI) putSelectionHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSelectionBody+1))
	if err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"body": {"could not be read"}})
		return
	}
	if len(body) > maxSelectionBody {
		api.sendError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil || raw == nil {
		api.validationErrorResponse(w, r, map[string][]string{"body": {"must be a JSON object"}})
		return
	}

	entry, fieldErrors, err := api.applySelection(r.Context(), raw)
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.sendResponse(w, r, newEntryResponse(entry, api.Clock))
}

// applySelection validates a partial update and, only if every field is
// valid, publishes it through the update goroutine. The returned entry is
// the state right after this update, before any later one.
func (api *RestAPI) applySelection(ctx context.Context, raw map[string]json.RawMessage) (SelectionEntry, map[string][]string, error) {
	updates := make(map[selection.Slot]selection.Value, len(raw))
	fieldErrors := map[string][]string{}

	for key, msg := range raw {
		slot, ok := slotByName(key)
		if !ok {
			fieldErrors[key] = []string{"unknown selection slot"}
			continue
		}
		var v selection.Value
		if err := json.Unmarshal(msg, &v); err != nil {
			fieldErrors[key] = []string{"must be a string or null"}
			continue
		}
		if problem := api.validateSelection(slot, v); problem != "" {
			fieldErrors[key] = []string{problem}
			continue
		}
		updates[slot] = v
	}

	if len(fieldErrors) > 0 {
		return SelectionEntry{}, fieldErrors, nil
	}

	var entry SelectionEntry
	err := api.Updates.Do(ctx, func(bus *selection.Bus) {
		for _, slot := range []selection.Slot{selection.SlotDistrict, selection.SlotMouza, selection.SlotLayer} {
			if v, ok := updates[slot]; ok {
				bus.Set(slot, v)
			}
		}
		state, seq := bus.Current()
		entry = SelectionEntry{Seq: seq, State: state}
	})
	return entry, nil, err
}

func joinProblems(fieldErrors map[string][]string) string {
	keys := make([]string, 0, len(fieldErrors))
	for k := range fieldErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(fieldErrors[k], ", "))
	}
	return strings.Join(parts, "; ")
}

func slotByName(name string) (selection.Slot, bool) {
	switch name {
	case "district":
		return selection.SlotDistrict, true
	case "mouza":
		return selection.SlotMouza, true
	case "layer":
		return selection.SlotLayer, true
	default:
		return 0, false
	}
}

// validateSelection checks that a district or mouza exists in the current
// index. Clearing a slot is always allowed.
func (api *RestAPI) validateSelection(slot selection.Slot, v selection.Value) string {
	if !v.Set {
		return ""
	}
	idx := api.Index()
	switch slot {
	case selection.SlotDistrict:
		if _, found := slices.BinarySearch(idx.Parents(), v.Name); !found {
			return "unknown district"
		}
	case selection.SlotMouza:
		for _, f := range idx.ChildFeatures() {
			if f.Name == v.Name {
				return ""
			}
		}
		return "unknown mouza"
	case selection.SlotLayer:
		if utf8.RuneCountInString(v.Name) > maxLayerNameRunes {
			return "layer name is too long"
		}
	}
	return ""
}
