package example

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusFailed  RunStatus = "failed"
)

type EventType string

const EventDealWon EventType = "crm.deal.won"

type Run struct {
	Status RunStatus
}

type Trigger struct {
	EventType EventType
	Name      string
}

func bad() {
	r := &Run{}
	r.Status = "done" // want "enum field Status assigned string literal"

	_ = Trigger{EventType: "crm.deal.exploded"} // want "enum field EventType assigned string literal"
}

func good() {
	r := &Run{}
	r.Status = RunStatusFailed // OK: using constant

	_ = Trigger{EventType: EventDealWon, Name: "won"} // OK: constant, and Name is a plain string
}

func alsoGood() {
	// OK: Variable, not literal
	status := RunStatusRunning
	r := &Run{Status: status}
	_ = r
}
