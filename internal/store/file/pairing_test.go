package file

import "github.com/nextlevelbuilder/chatgate/internal/store"

var _ store.PairingStore = (*FilePairingStore)(nil)
