package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sysrepo-go/sysrepod/cmd/util"
	"github.com/sysrepo-go/sysrepod/datastore"
	"github.com/sysrepo-go/sysrepod/rpc/client"
)

func targetFromFlag() (datastore.Kind, error) {
	switch viper.GetString("target") {
	case "running":
		return datastore.Running, nil
	case "candidate":
		return datastore.Candidate, nil
	case "startup":
		return datastore.Startup, nil
	default:
		return 0, fmt.Errorf("invalid --target %q (expected running, candidate, or startup)", viper.GetString("target"))
	}
}

// connectSession binds cmd's flags to viper and opens one sysrepod session
// targeting the configured datastore. Callers are responsible for calling
// Stop on the returned session.
func connectSession(cmd *cobra.Command) (*client.Session, error) {
	if err := util.BindCommandFlags(cmd); err != nil {
		return nil, err
	}

	target, err := targetFromFlag()
	if err != nil {
		return nil, err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return nil, err
	}

	cfg := *util.GetClientConfig()
	return client.Connect(cfg, util.GetTransport(), s, target)
}
