package view

import "fmt"

// DeleteStep is the state of one story's delete confirmation.
type DeleteStep int

// DeleteStep constants
const (
	DeleteOffering   DeleteStep = iota // "delete" link shown
	DeleteConfirming                   // "are you sure? yes / no" shown
)

// String returns the step name used in markup.
func (s DeleteStep) String() string {
	switch s {
	case DeleteOffering:
		return "offering"
	case DeleteConfirming:
		return "confirming"
	}
	return fmt.Sprintf("DeleteStep(%d)", int(s))
}

// DeleteAction is a click inside a story's delete control.
type DeleteAction string

// DeleteAction constants
const (
	DeleteActionDelete DeleteAction = "delete"
	DeleteActionYes    DeleteAction = "yes"
	DeleteActionNo     DeleteAction = "no"
)

// ParseDeleteAction validates a delete action identifier.
func ParseDeleteAction(raw string) (DeleteAction, error) {
	switch a := DeleteAction(raw); a {
	case DeleteActionDelete, DeleteActionYes, DeleteActionNo:
		return a, nil
	}
	return "", fmt.Errorf("unknown delete action %q", raw)
}

// DeleteDecision tells the caller what to do after a click.
type DeleteDecision int

// DeleteDecision constants
const (
	DeleteIgnored DeleteDecision = iota // click has no effect in this step
	DeleteAdvanced                      // step changed, nothing to send
	DeleteIssue                         // caller must send the delete request
)

// Deletions holds the confirmation step for each story that has left Offering.
// Stories not in the map are Offering. The zero value is ready to use.
type Deletions struct {
	steps map[string]DeleteStep
}

// Step returns the current step for a story.
func (d Deletions) Step(id string) DeleteStep {
	return d.steps[id]
}

// Apply feeds a click into the story's state machine.
// Offering --delete--> Confirming; Confirming --no--> Offering;
// Confirming --yes--> DeleteIssue (step stays Confirming until Fail or Forget).
// POST: Returns DeleteIssue at most once per Confirming entry
func (d *Deletions) Apply(id string, action DeleteAction) DeleteDecision {
	switch d.Step(id) {
	case DeleteOffering:
		if action == DeleteActionDelete {
			d.set(id, DeleteConfirming)
			return DeleteAdvanced
		}
	case DeleteConfirming:
		switch action {
		case DeleteActionNo:
			d.set(id, DeleteOffering)
			return DeleteAdvanced
		case DeleteActionYes:
			return DeleteIssue
		}
	}
	return DeleteIgnored
}

// Fail returns a story to Offering after a failed delete request.
func (d *Deletions) Fail(id string) {
	d.set(id, DeleteOffering)
}

// Forget drops all state for a story, used once it has been deleted.
func (d *Deletions) Forget(id string) {
	delete(d.steps, id)
}

func (d *Deletions) set(id string, step DeleteStep) {
	if step == DeleteOffering {
		delete(d.steps, id)
		return
	}
	if d.steps == nil {
		d.steps = make(map[string]DeleteStep)
	}
	d.steps[id] = step
}
