package domain

// ContainerStatus is the lifecycle state of a waste container
type ContainerStatus string

const (
	ContainerAvailable ContainerStatus = "available"
	ContainerInUse     ContainerStatus = "in_use"
	ContainerInTransit ContainerStatus = "in_transit"
	ContainerDisposed  ContainerStatus = "disposed"
)

func (s ContainerStatus) IsValid() bool {
	switch s {
	case ContainerAvailable, ContainerInUse, ContainerInTransit, ContainerDisposed:
		return true
	}
	return false
}

// IsTerminal reports whether the container accepts no further actions
func (s ContainerStatus) IsTerminal() bool {
	return s == ContainerDisposed
}

// ContainerAction is a scan recorded against a container
type ContainerAction string

const (
	ActionDelivered ContainerAction = "delivered"
	ActionCollected ContainerAction = "collected"
	ActionCleaned   ContainerAction = "cleaned"
	ActionDisposed  ContainerAction = "disposed"
)

// ContainerActions lists every action
var ContainerActions = []ContainerAction{ActionDelivered, ActionCollected, ActionCleaned, ActionDisposed}

var actionResults = map[ContainerAction]ContainerStatus{
	ActionDelivered: ContainerInUse,
	ActionCollected: ContainerInTransit,
	ActionCleaned:   ContainerAvailable,
	ActionDisposed:  ContainerDisposed,
}

func (a ContainerAction) IsValid() bool {
	_, ok := actionResults[a]
	return ok
}

// ResultingStatus maps an action to the status it leaves the container in
func ResultingStatus(action ContainerAction) (ContainerStatus, bool) {
	s, ok := actionResults[action]
	return s, ok
}

// KeepsCustodian reports whether the container stays with a customer after action
func KeepsCustodian(action ContainerAction) bool {
	return action == ActionDelivered
}

// ContainerType distinguishes single-use from returnable containers
type ContainerType string

const (
	ContainerSacrificial ContainerType = "sacrificial"
	ContainerReusable    ContainerType = "reusable"
)

func (t ContainerType) IsValid() bool {
	return t == ContainerSacrificial || t == ContainerReusable
}
