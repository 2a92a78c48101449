package types

// IndexMode describes how an owner's vectors are partitioned in the
// underlying vector store.
type IndexMode string

const (
	// ModeNamespace scopes the owner's data by a partition key inside the
	// shared multi-tenant index. Requires no provisioning.
	ModeNamespace IndexMode = "namespace"

	// ModeDedicated gives the owner an exclusively provisioned index.
	ModeDedicated IndexMode = "dedicated"
)

// IndexDescriptor records how an owner's vector storage is laid out. The
// index name is derived deterministically from the owner ID. Mode is sticky:
// once an owner has a dedicated index, all subsequent operations use it.
type IndexDescriptor struct {
	OwnerID   string    `json:"owner_id"`
	Mode      IndexMode `json:"mode"`
	IndexName string    `json:"index_name"`
}
