package domain

import (
	"encoding/json"
	"testing"
)

func TestRanking_MarshalKeepsOrder(t *testing.T) {
	r := NewRanking(3)
	r.Set("9", []string{"9", "10"})
	r.Set("10", []string{"10", "9"})
	r.Set("1", []string{})

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"9":["9","10"],"10":["10","9"],"1":[]}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestRanking_SetTwiceKeepsPosition(t *testing.T) {
	r := NewRanking(2)
	r.Set("a", []string{"a"})
	r.Set("b", []string{"b"})
	r.Set("a", []string{"b", "a"})

	q := r.Queries()
	if len(q) != 2 || q[0] != "a" || q[1] != "b" {
		t.Errorf("unexpected query order %v", q)
	}
	docs, _ := r.Get("a")
	if docs[0] != "b" {
		t.Errorf("expected overwritten docs, got %v", docs)
	}
}

func TestRanking_UnmarshalKeepsOrder(t *testing.T) {
	var r Ranking
	if err := json.Unmarshal([]byte(`{"z":["z","a"],"a":["a","z"]}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	q := r.Queries()
	if len(q) != 2 || q[0] != "z" || q[1] != "a" {
		t.Errorf("unexpected order %v", q)
	}
	docs, ok := r.Get("a")
	if !ok || len(docs) != 2 || docs[0] != "a" {
		t.Errorf("unexpected docs %v", docs)
	}
}

func TestRanking_UnmarshalRejectsArray(t *testing.T) {
	var r Ranking
	if err := json.Unmarshal([]byte(`["a"]`), &r); err == nil {
		t.Fatal("expected error")
	}
}
