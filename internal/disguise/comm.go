package disguise

// MaxCommLen is the longest task name the kernel keeps (TASK_COMM_LEN - 1).
const MaxCommLen = 15
