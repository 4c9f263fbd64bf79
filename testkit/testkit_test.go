package testkit_test

import (
	"testing"
	"time"

	"github.com/relaycore/relay/actor"
	"github.com/relaycore/relay/message"
	"github.com/relaycore/relay/pid"
	"github.com/relaycore/relay/testkit"
)

type echoActor struct {
	actor.BaseActor
}

func (echoActor) Receive(ctx *actor.Context) {
	if _, ok := ctx.Message().(string); ok {
		_ = ctx.Response(ctx.Message())
	}
}

func TestHarness_SpawnAndAsk(t *testing.T) {
	h := testkit.New(t)
	defer h.Shutdown()

	ref := h.Spawn("echo", func() actor.Actor { return &echoActor{} })
	reply := h.Ask(ref.PID(), "ping", time.Second)
	if reply != "ping" {
		t.Fatalf("expected ping, got %v", reply)
	}
}

// forwardActor relays every user message it receives on to a fixed
// target, letting a test observe an actor's outbound traffic through a
// Probe instead of only its return values.
type forwardActor struct {
	actor.BaseActor
	target pid.PID
}

func (f *forwardActor) Receive(ctx *actor.Context) {
	_ = ctx.Tell(f.target, ctx.Message())
}

func TestProbe_ExpectMessage(t *testing.T) {
	h := testkit.New(t)
	defer h.Shutdown()

	probe := h.NewProbe()
	defer probe.Stop()

	ref := h.Spawn("forwarder", func() actor.Actor { return &forwardActor{target: probe.PID()} })

	env := message.NewEnvelope(ref.PID(), nil, "hello")
	if err := ref.SendUser(env); err != nil {
		t.Fatalf("unexpected error posting to forwarder: %v", err)
	}

	probe.ExpectMessage("hello")
}

func TestProbe_ExpectNoMessage(t *testing.T) {
	h := testkit.New(t)
	defer h.Shutdown()

	probe := h.NewProbe()
	defer probe.Stop()
	probe.ExpectNoMessage()
}
