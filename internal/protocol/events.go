package protocol

// Event is an agent-facing notice. Every event carries "t" (tick) and "type".
type Event map[string]interface{}

// Task lifecycle event types.
const (
	EventTaskStart       = "TASK_START"
	EventToolReady       = "TOOL_READY"
	EventBlockMined      = "BLOCK_MINED"
	EventCropHarvested   = "CROP_HARVESTED"
	EventTargetAbandoned = "TARGET_ABANDONED"
	EventTaskDone        = "TASK_DONE"
	EventTaskFail        = "TASK_FAIL"
)

func NewEvent(tick uint64, typ string) Event {
	return Event{"t": tick, "type": typ}
}

func (e Event) Type() string {
	s, _ := e["type"].(string)
	return s
}
