package rotation_test

import (
	"testing"

	"github.com/bulkwave/bulkwave-backend/internal/model"
	"github.com/bulkwave/bulkwave-backend/internal/rotation"
)

func devices(ids ...string) []*model.Device {
	out := make([]*model.Device, len(ids))
	for i, id := range ids {
		out[i] = &model.Device{ID: id, Ready: true}
	}
	return out
}

func TestRoundRobinFairness(t *testing.T) {
	tests := []struct {
		name  string
		ids   []string
		calls int
	}{
		{"two devices five calls", []string{"a", "b"}, 5},
		{"three devices nine calls", []string{"a", "b", "c"}, 9},
		{"single device", []string{"a"}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eligible := devices(tt.ids...)
			st := model.NewRotationState()
			counts := map[string]int{}
			for i := 0; i < tt.calls; i++ {
				d := rotation.Pick(eligible, &st, model.RotationRoundRobin, 0)
				counts[d.ID]++
			}

			k := len(tt.ids)
			lo, hi := tt.calls/k, (tt.calls+k-1)/k
			for _, id := range tt.ids {
				if counts[id] < lo || counts[id] > hi {
					t.Errorf("device %s picked %d times, want %d or %d", id, counts[id], lo, hi)
				}
			}
		})
	}
}

func TestRoundRobinOrder(t *testing.T) {
	eligible := devices("a", "b")
	st := model.NewRotationState()
	want := []string{"a", "b", "a", "b", "a"}
	for i, w := range want {
		if got := rotation.Pick(eligible, &st, model.RotationRoundRobin, 0); got.ID != w {
			t.Fatalf("call %d: got %s, want %s", i, got.ID, w)
		}
	}
}

func TestCustomCountStickiness(t *testing.T) {
	for _, threshold := range []int{1, 2, 3, 7} {
		eligible := devices("a", "b", "c")
		st := model.NewRotationState()

		// Every run of `threshold` consecutive calls must return one device,
		// and consecutive runs must use different devices.
		var prev string
		for run := 0; run < 4; run++ {
			first := rotation.Pick(eligible, &st, model.RotationCustomCount, threshold)
			for i := 1; i < threshold; i++ {
				d := rotation.Pick(eligible, &st, model.RotationCustomCount, threshold)
				if d.ID != first.ID {
					t.Fatalf("threshold %d run %d: switched from %s to %s mid-run", threshold, run, first.ID, d.ID)
				}
			}
			if first.ID == prev && len(eligible) > 1 {
				t.Fatalf("threshold %d run %d: did not advance past %s", threshold, run, prev)
			}
			prev = first.ID
		}
	}
}

func TestCustomCountZeroThresholdNormalized(t *testing.T) {
	eligible := devices("a", "b")
	st := model.NewRotationState()
	first := rotation.Pick(eligible, &st, model.RotationCustomCount, 0)
	second := rotation.Pick(eligible, &st, model.RotationCustomCount, 0)
	if first.ID == second.ID {
		t.Errorf("threshold 0 should behave as 1, got %s twice", first.ID)
	}
}

func TestCustomCountRepinsWhenPinnedDeviceLeaves(t *testing.T) {
	eligible := devices("a", "b")
	st := model.NewRotationState()
	pinned := rotation.Pick(eligible, &st, model.RotationCustomCount, 5)

	var rest []*model.Device
	for _, d := range eligible {
		if d.ID != pinned.ID {
			rest = append(rest, d)
		}
	}
	got := rotation.Pick(rest, &st, model.RotationCustomCount, 5)
	if got.ID == pinned.ID {
		t.Fatalf("still returned departed device %s", pinned.ID)
	}
}

func TestLoadBalanced(t *testing.T) {
	eligible := devices("a", "b", "c")
	st := model.NewRotationState()
	st.Usage["a"] = 3
	st.Usage["b"] = 1
	st.Usage["c"] = 2

	if got := rotation.Pick(eligible, &st, model.RotationLoadBalanced, 0); got.ID != "b" {
		t.Errorf("got %s, want b (lowest usage)", got.ID)
	}
}

func TestLoadBalancedTieBreaksByListOrder(t *testing.T) {
	eligible := devices("a", "b", "c")
	st := model.NewRotationState()
	if got := rotation.Pick(eligible, &st, model.RotationLoadBalanced, 0); got.ID != "a" {
		t.Errorf("got %s, want a (first in list on tie)", got.ID)
	}
}

func TestRandomStaysInEligibleSet(t *testing.T) {
	eligible := devices("a", "b")
	st := model.NewRotationState()
	for i := 0; i < 50; i++ {
		d := rotation.Pick(eligible, &st, model.RotationRandom, 0)
		if d.ID != "a" && d.ID != "b" {
			t.Fatalf("picked device %s outside eligible set", d.ID)
		}
	}
}

func TestManualBehavesLikeRoundRobin(t *testing.T) {
	eligible := devices("x", "y")
	st := model.NewRotationState()
	want := []string{"x", "y", "x"}
	for i, w := range want {
		if got := rotation.Pick(eligible, &st, model.RotationManual, 0); got.ID != w {
			t.Fatalf("call %d: got %s, want %s", i, got.ID, w)
		}
	}
}
