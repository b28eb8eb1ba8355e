package model

// DisplayRecord is a pending workload joined with its detail and owner,
// ready for presentation. Fields fed by an input that is not ready are blank.
type DisplayRecord struct {
	Name                   string `json:"name"`
	Namespace              string `json:"namespace"`
	LocalQueue             string `json:"local_queue"`
	Priority               int32  `json:"priority"`
	PositionInClusterQueue int32  `json:"position_in_cluster_queue"`
	PositionInLocalQueue   int32  `json:"position_in_local_queue"`
	Active                 bool   `json:"active"`

	Owner     *OwnerReference `json:"owner,omitempty"`
	OwnerPath string          `json:"owner_path,omitempty"`

	SubmittedAt  int64  `json:"submitted_at"`
	SubmittedAgo string `json:"submitted_ago,omitempty"`
	Submitter    string `json:"submitter,omitempty"`

	// Limits of the first container of the first pod set.
	CPULimit    string   `json:"cpu_limit,omitempty"`
	MemoryLimit string   `json:"memory_limit,omitempty"`
	CPUCores    *float64 `json:"cpu_cores,omitempty"`
	MemoryBytes *int64   `json:"memory_bytes,omitempty"`

	DetailState string `json:"detail_state"`
	OwnerState  string `json:"owner_state"`
}

// QueueView is the admission order of one local queue.
type QueueView struct {
	Namespace    string `json:"namespace"`
	Name         string `json:"name"`
	ClusterQueue string `json:"cluster_queue"`
	// Ready is false while the cluster queue's pending summary is not available.
	Ready     bool            `json:"ready"`
	Workloads []DisplayRecord `json:"workloads"`
}
