package progress

import (
	"context"

	"stepwise/internal/curriculum"
	"stepwise/internal/executor"
)

// Runner executes one test artifact. executor.TestRunner satisfies it.
type Runner interface {
	Run(ctx context.Context, path string) executor.Outcome
}

// ClassifyDeclared partitions artifacts around the declared pointer. Steps
// strictly below the pointer are passed, steps strictly above are locked,
// and artifacts sharing the pointer's step are in neither set. Those other
// than the pointer itself are listed as siblings. The pointer need not name
// a discovered artifact.
func ClassifyDeclared(artifacts []curriculum.Artifact, pointer curriculum.Pointer) Partial {
	p := Partial{
		Mode:    ModeDeclared,
		Current: strPtr(pointer.Current),
		Passed:  []string{},
		Locked:  []string{},
		Total:   len(artifacts),
	}

	for _, a := range artifacts {
		switch {
		case sameStep(a.Step, pointer.Artifact.Step):
			if a.Identifier != pointer.Current {
				p.Siblings = append(p.Siblings, a.Identifier)
			}
		case a.Step.Less(pointer.Artifact.Step):
			p.Passed = append(p.Passed, a.Identifier)
		default:
			p.Locked = append(p.Locked, a.Identifier)
		}
	}

	if len(p.Locked) > 0 {
		p.Next = strPtr(p.Locked[0])
	}
	return p
}

// sameStep treats "1.05" and "1.5" as one step even though Compare orders
// them for a stable listing.
func sameStep(a, b curriculum.Step) bool {
	return a.Major == b.Major && a.HasMinor == b.HasMinor && a.Minor == b.Minor
}

// ClassifyExecuted runs the lowest artifact and reports it as passed or
// current. The runner is not called when there are no artifacts.
func ClassifyExecuted(ctx context.Context, artifacts []curriculum.Artifact, runner Runner) Partial {
	p := Partial{
		Mode:   ModeExecuted,
		Passed: []string{},
		Locked: []string{},
		Total:  len(artifacts),
	}
	if len(artifacts) == 0 {
		return p
	}

	first := artifacts[0]
	p.Current = strPtr(first.Identifier)

	outcome := runner.Run(ctx, first.Path)
	p.Execution = DiagnosticFrom(outcome)

	if outcome.Passed {
		p.Passed = append(p.Passed, first.Identifier)
		if len(artifacts) > 1 {
			p.Next = strPtr(artifacts[1].Identifier)
		}
	} else {
		p.Next = strPtr(first.Identifier)
	}
	return p
}

// ClassifyForcePass reports every artifact as passed. Current is the lowest
// artifact; nothing is locked and there is no next step.
func ClassifyForcePass(mode Mode, artifacts []curriculum.Artifact) Partial {
	p := Partial{
		Mode:   mode,
		Passed: curriculum.Identifiers(artifacts),
		Locked: []string{},
		Total:  len(artifacts),
	}
	if len(artifacts) > 0 {
		p.Current = strPtr(artifacts[0].Identifier)
	}
	return p
}
