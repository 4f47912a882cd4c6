package stage

import "testing"

func TestSortEnvelopeErrors_ByStageLocatorMessage(t *testing.T) {
	env := Envelope{
		Errors: []Error{
			{Stage: "z", Locator: "b", Message: "m2"},
			{Stage: "a", Locator: "z", Message: "m2"},
			{Stage: "a", Locator: "a", Message: "m3"},
			{Stage: "a", Locator: "a", Message: "m1"},
		},
	}
	SortEnvelopeErrors(&env)
	got := env.Errors
	want := []Error{
		{Stage: "a", Locator: "a", Message: "m1"},
		{Stage: "a", Locator: "a", Message: "m3"},
		{Stage: "a", Locator: "z", Message: "m2"},
		{Stage: "z", Locator: "b", Message: "m2"},
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected count: %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d mismatch: got=%+v want=%+v", i, got[i], want[i])
		}
	}
}

func TestAddErrors_OneLineMessagesInOrder(t *testing.T) {
	env := Envelope{Errors: []Error{{Stage: "shift-records", Locator: "b.ndjson:2", Message: "x"}}}
	addErrors(&env, []Error{
		{Stage: "shift-records", Locator: "a.ndjson:1", Message: "put:\n  status 422:   bad"},
		{Stage: "shift-records", Locator: "a.ndjson:3", Message: "   "},
	})
	if len(env.Errors) != 3 {
		t.Fatalf("unexpected count: %d", len(env.Errors))
	}
	if env.Errors[0].Message != "put: status 422: bad" || env.Errors[1].Message != "error" {
		t.Fatalf("messages not sanitized: %+v", env.Errors)
	}
	if env.Errors[2].Locator != "b.ndjson:2" {
		t.Fatalf("errors not sorted: %+v", env.Errors)
	}
}
