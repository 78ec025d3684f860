package grove

const (
	operationListLots       = "list_lots"
	operationAssignOperator = "assign_operator"
	operationReassignTree   = "reassign_tree"
	operationNotify         = "notify_operator_assigned"

	operationStatusOK          = "ok"
	operationStatusError       = "error"
	operationStatusNotifyError = "notify_error"
)
