package workflow

import "fmt"

// State-key conventions (§4.5): every cross-component consumer of workflow
// output MUST read/write these exact keys.

func StepOutputKey(workflowID, stepName string) string {
	return fmt.Sprintf("workflow:%s:step:%s:output", workflowID, stepName)
}

func AgentOutputKey(workflowID, agentName string) string {
	return fmt.Sprintf("workflow:%s:agent:%s:output", workflowID, agentName)
}

func NestedOutputKey(workflowID, childName string) string {
	return fmt.Sprintf("workflow:%s:nested:%s:output", workflowID, childName)
}

func FinalOutputKey(workflowID string) string {
	return fmt.Sprintf("workflow:%s:final_output", workflowID)
}

func StateKey(workflowID string) string {
	return fmt.Sprintf("workflow:%s:state", workflowID)
}

func ErrorKey(workflowID string) string {
	return fmt.Sprintf("workflow:%s:error", workflowID)
}
