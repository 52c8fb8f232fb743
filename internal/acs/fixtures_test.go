package acs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
)

// cells builds a response row; nil entries become null cells.
func cells(vals ...any) []*string {
	out := make([]*string, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s := fmt.Sprint(v)
		out[i] = &s
	}
	return out
}

var testHeader = []any{"DP02_0001E", "DP02_0002E", "GEO_ID", "NAME", "state", "county", "tract"}

var testLabels = map[string]string{
	"DP02_0001E": "Estimate!!HOUSEHOLDS BY TYPE!!Total households",
	"DP02_0002E": "Estimate!!HOUSEHOLDS BY TYPE!!Total households!!Married-couple household",
}

func geoID(state, tract string) string {
	return "1400000US" + state + "001" + tract
}

// stateResponse returns a header plus n tracts for state.
func stateResponse(state string, n int) RawStateResponse {
	rows := [][]*string{cells(testHeader...)}
	for i := range n {
		tract := fmt.Sprintf("0%d0100", i+1)
		rows = append(rows, cells(
			100*(i+1), 10*(i+1),
			geoID(state, tract), fmt.Sprintf("Census Tract %d01", i+1),
			state, "001", tract,
		))
	}
	return RawStateResponse{State: state, Rows: rows}
}

type fakeLabels struct {
	labels map[string]string
	delay  func(code string) time.Duration
	calls  atomic.Int32
}

func newFakeLabels() *fakeLabels {
	return &fakeLabels{labels: testLabels}
}

func (f *fakeLabels) VariableLabel(ctx context.Context, _ int, code string) (string, error) {
	f.calls.Add(1)
	if f.delay != nil {
		select {
		case <-time.After(f.delay(code)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	label, ok := f.labels[code]
	if !ok {
		return "", eris.Errorf("census: not found: %s", code)
	}
	return label, nil
}

type fakeSource struct {
	mu        sync.Mutex
	responses map[string][][]*string
	requested []string
	onFetch   func()
}

func newFakeSource(resps ...RawStateResponse) *fakeSource {
	f := &fakeSource{responses: make(map[string][][]*string)}
	for _, r := range resps {
		f.responses[r.State] = r.Rows
	}
	return f
}

func (f *fakeSource) ProfileGroup(_ context.Context, _ int, _ string, state string) ([][]*string, error) {
	f.mu.Lock()
	f.requested = append(f.requested, state)
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch()
	}
	rows, ok := f.responses[state]
	if !ok {
		return nil, eris.Errorf("census: no content for state %s", state)
	}
	return rows, nil
}

func mustWide(resps ...RawStateResponse) *WideTable {
	w, err := AssembleWide(context.Background(), resps, NewLabelResolver(newFakeLabels()), 2020)
	if err != nil {
		panic(err)
	}
	return w
}
