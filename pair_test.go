package kvcollate

import "testing"

func TestEncodeDecodePairRoundTrip(t *testing.T) {
	cases := []Pair{
		{Key: 0, Value: 0},
		{Key: 1, Value: 2},
		{Key: ^uint64(0), Value: ^uint64(0)},
		{Key: 0xDEADBEEF, Value: 0xCAFEF00D},
	}

	for _, p := range cases {
		buf := make([]byte, pairSize)
		encodePair(buf, p)
		got := decodePair(buf)
		if got != p {
			t.Errorf("round-trip %+v: got %+v", p, got)
		}
	}
}

func TestLessPairKeyThenValue(t *testing.T) {
	cases := []struct {
		a, b Pair
		want bool
	}{
		{Pair{1, 0}, Pair{2, 0}, true},
		{Pair{2, 0}, Pair{1, 0}, false},
		{Pair{5, 1}, Pair{5, 2}, true},
		{Pair{5, 2}, Pair{5, 1}, false},
		{Pair{5, 5}, Pair{5, 5}, false},
	}
	for _, c := range cases {
		if got := lessPair(c.a, c.b); got != c.want {
			t.Errorf("lessPair(%+v, %+v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
