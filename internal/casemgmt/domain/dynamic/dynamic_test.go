package dynamic

import (
	"errors"
	"testing"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
)

func TestNewHumanTaskSpec(t *testing.T) {
	spec, err := NewHumanTaskSpec("Review claim", "alice", "managers", "look at #{amount}", map[string]any{
		"priority": "high",
	})
	if err != nil {
		t.Fatalf("NewHumanTaskSpec: %v", err)
	}
	if spec.Kind() != KindHumanTask {
		t.Errorf("kind = %q, want %q", spec.Kind(), KindHumanTask)
	}
	if spec.Name() != "Review claim" || spec.Actors() != "alice" || spec.Groups() != "managers" {
		t.Errorf("unexpected attributes: %q %q %q", spec.Name(), spec.Actors(), spec.Groups())
	}
}

func TestNewHumanTaskSpecRequiresName(t *testing.T) {
	_, err := NewHumanTaskSpec("   ", "alice", "", "", nil)
	if !errors.Is(err, apperrors.New(apperrors.CodeTaskSpecInvalid, "")) {
		t.Fatalf("expected %s, got %v", apperrors.CodeTaskSpecInvalid, err)
	}
}

func TestNewNodeTaskSpecRequiresNodeType(t *testing.T) {
	_, err := NewNodeTaskSpec("", "Send mail", nil)
	if !errors.Is(err, apperrors.New(apperrors.CodeTaskSpecInvalid, "")) {
		t.Fatalf("expected %s, got %v", apperrors.CodeTaskSpecInvalid, err)
	}
}

func TestNewNodeTaskSpecCarriesTypeAndName(t *testing.T) {
	spec, err := NewNodeTaskSpec("Email", "Send offer", nil)
	if err != nil {
		t.Fatalf("NewNodeTaskSpec: %v", err)
	}
	if spec.NodeType() != "Email" || spec.Name() != "Send offer" {
		t.Fatalf("spec = type %q name %q, want Email / Send offer", spec.NodeType(), spec.Name())
	}
	node := spec.NodeSpec()
	if node.NodeType != "Email" || node.Name != "Send offer" {
		t.Fatalf("node = type %q name %q, want Email / Send offer", node.NodeType, node.Name)
	}

	unnamed, err := NewNodeTaskSpec("Email", "  ", nil)
	if err != nil {
		t.Fatalf("NewNodeTaskSpec: %v", err)
	}
	if unnamed.Name() != "Email" {
		t.Fatalf("blank name should default to the type, got %q", unnamed.Name())
	}
}

func TestResolveAgainst(t *testing.T) {
	file := casefile.New()
	file.Set("amount", casefile.Number(500))
	file.Set("assignee", casefile.String("alice"))

	spec, err := NewHumanTaskSpec("Approve #{amount}", "#{assignee}", "", "amount is #{amount}", map[string]any{
		"amount":  "#{amount}",
		"retries": 3,
	})
	if err != nil {
		t.Fatalf("NewHumanTaskSpec: %v", err)
	}

	resolved := spec.ResolveAgainst(file)
	if resolved.Name() != "Approve 500" {
		t.Errorf("name = %q, want %q", resolved.Name(), "Approve 500")
	}
	if resolved.Actors() != "alice" {
		t.Errorf("actors = %q, want %q", resolved.Actors(), "alice")
	}
	if resolved.Description() != "amount is 500" {
		t.Errorf("description = %q", resolved.Description())
	}
	params := resolved.Parameters()
	if params["amount"] != "500" {
		t.Errorf("amount parameter = %v, want %q", params["amount"], "500")
	}
	if params["retries"] != 3 {
		t.Errorf("non-string parameter changed: %v", params["retries"])
	}

	// The original specification keeps its expressions.
	if spec.Name() != "Approve #{amount}" {
		t.Errorf("source spec mutated: %q", spec.Name())
	}
}

func TestResolveAgainstUnknownName(t *testing.T) {
	spec, err := NewNodeTaskSpec("Notify", "", map[string]any{"to": "#{missing}"})
	if err != nil {
		t.Fatalf("NewNodeTaskSpec: %v", err)
	}
	resolved := spec.ResolveAgainst(casefile.New())
	if got := resolved.Parameters()["to"]; got != "" {
		t.Errorf("unknown placeholder = %v, want empty string", got)
	}
}

func TestNodeSpecConversions(t *testing.T) {
	spec, err := NewHumanTaskSpec("Review", "alice", "managers", "desc", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("NewHumanTaskSpec: %v", err)
	}
	node := spec.NodeSpec()
	if node.Kind != KindHumanTask || node.Name != "Review" || node.Actors != "alice" {
		t.Errorf("unexpected node spec: %+v", node)
	}

	sub := SubprocessNode("insurance.payout", map[string]any{"amount": 500})
	if sub.Kind != KindSubprocess || sub.ProcessID != "insurance.payout" {
		t.Errorf("unexpected subprocess spec: %+v", sub)
	}

	frag := FragmentNode("escalate", nil)
	if frag.Kind != KindFragment || frag.FragmentName != "escalate" {
		t.Errorf("unexpected fragment spec: %+v", frag)
	}
}
