package core

// Action names an operation that may change a job's lifecycle.
type Action string

const (
	ActionStart            Action = "start"
	ActionAddTechnician    Action = "add_technician"
	ActionRemoveTechnician Action = "remove_technician"
	ActionPause            Action = "pause"
	ActionResume           Action = "resume"
	ActionComplete         Action = "complete"
	ActionSendToQC         Action = "send_to_qc"
	ActionApproveQC        Action = "approve_qc"
	ActionRejectQC         Action = "reject_qc"
)

func (a Action) String() string {
	return string(a)
}
