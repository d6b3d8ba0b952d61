// Package rotation picks which device handles the next unit of work. Pure
// decision logic: no clocks, no transport, only the eligible set and the
// campaign's own rotation state.
package rotation

import (
	"math/rand"

	"github.com/bulkwave/bulkwave-backend/internal/model"
)

// Pick returns the device for the next send and advances the rotation state.
// eligible must be non-empty; callers check and back off before calling.
//
// Policies:
//   - round-robin: cursor walks the eligible list, one step per call
//   - random: uniform pick
//   - load-balanced: lowest cumulative usage, ties broken by list order
//   - custom-count: sticky pick until the pinned device has been handed out
//     messagesPerDevice times, then advance and re-pin
//   - manual: round-robin over the caller-filtered subset
func Pick(eligible []*model.Device, st *model.RotationState, policy string, messagesPerDevice int) *model.Device {
	switch policy {
	case model.RotationRandom:
		return eligible[rand.Intn(len(eligible))]

	case model.RotationLoadBalanced:
		best := eligible[0]
		for _, d := range eligible[1:] {
			if st.Usage[d.ID] < st.Usage[best.ID] {
				best = d
			}
		}
		return best

	case model.RotationCustomCount:
		if messagesPerDevice < 1 {
			messagesPerDevice = 1
		}
		var pinned *model.Device
		if st.PinnedDeviceID != "" && st.PinnedCount < messagesPerDevice {
			pinned = findByID(eligible, st.PinnedDeviceID)
		}
		if pinned == nil {
			// Quota exhausted, nothing pinned yet, or the pinned device
			// left the eligible set: advance and re-pin.
			pinned = eligible[st.Cursor%len(eligible)]
			st.Cursor++
			st.PinnedDeviceID = pinned.ID
			st.PinnedCount = 0
		}
		st.PinnedCount++
		return pinned

	default: // round-robin, manual
		d := eligible[st.Cursor%len(eligible)]
		st.Cursor++
		return d
	}
}

func findByID(devices []*model.Device, id string) *model.Device {
	for _, d := range devices {
		if d.ID == id {
			return d
		}
	}
	return nil
}
