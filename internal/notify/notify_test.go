package notify

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestIsEndpointGone(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("push endpoint gone"), true},
		{errors.New("unexpected status 410 from push service"), true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsEndpointGone(tc.err); got != tc.want {
			t.Fatalf("IsEndpointGone(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestLogDispatcherNeverFails(t *testing.T) {
	d := NewLogDispatcher(zaptest.NewLogger(t))
	err := d.Dispatch(context.Background(), Notification{
		ChatID: "alice.os:bob.os",
		Title:  "bob.os",
		Body:   "hello",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}
