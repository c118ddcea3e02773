package file

import "github.com/nextlevelbuilder/chatgate/internal/chatgateway"

var _ chatgateway.ConfigStore = (*GatewayConfigStore)(nil)
