package settings

// StorageType is the backend selection persisted in the blob.
type StorageType string

const (
	StorageLocal   StorageType = "localStorage"
	StorageIndexed StorageType = "indexedDB"
	StorageMongo   StorageType = "mongodb"
)

// Mode identifies a storage facade backend.
type Mode string

const (
	ModeFlatKV          Mode = "flat-kv"
	ModeIndexedDocument Mode = "indexed-document"
	ModeRemoteDocument  Mode = "remote-document"
)

var storageModes = map[StorageType]Mode{
	StorageLocal:   ModeFlatKV,
	StorageIndexed: ModeIndexedDocument,
	StorageMongo:   ModeRemoteDocument,
}

// StorageTypes lists the known storage types.
func StorageTypes() []StorageType {
	return []StorageType{StorageLocal, StorageIndexed, StorageMongo}
}

// ParseStorageType accepts either a storage type ("indexedDB") or a mode
// name ("indexed-document"). The boolean is false for anything else.
func ParseStorageType(s string) (StorageType, bool) {
	st := StorageType(s)
	if _, ok := storageModes[st]; ok {
		return st, true
	}
	for k, m := range storageModes {
		if string(m) == s {
			return k, true
		}
	}
	return st, false
}

// Mode returns the facade mode for the storage type.
func (t StorageType) Mode() (Mode, bool) {
	m, ok := storageModes[t]
	return m, ok
}

// StorageType returns the persisted name for the mode.
func (m Mode) StorageType() (StorageType, bool) {
	for k, v := range storageModes {
		if v == m {
			return k, true
		}
	}
	return "", false
}
