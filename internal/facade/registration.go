package facade

import (
	"context"

	"mcprouter/internal/metadata"
	"mcprouter/internal/registry"
	"mcprouter/pkg/logging"
)

// RegisterServer implements spec.md §4.8's register_server: enters the
// server into the Registry and Metadata Store, then connects through the
// Adapter Framework in the background. A connect failure is logged and
// leaves the server registered as Unknown/Offline rather than failing the
// whole call (spec.md's failure semantics: "registration continues on
// adapter-connect failure").
func (f *Facade) RegisterServer(ctx context.Context, id string, spec registry.LaunchSpec, capabilities, tags []string, displayName, description string) (registry.Server, error) {
	s, err := f.Registry.Register(id, spec, capabilities, tags, displayName, description)
	if err != nil {
		return registry.Server{}, err
	}

	if f.Metadata != nil {
		capInputs := make([]metadata.CapabilityInput, len(capabilities))
		for i, c := range capabilities {
			capInputs[i] = metadata.CapabilityInput{Name: c}
		}
		if err := f.Metadata.UpsertServer(ctx, metadata.ServerInput{
			ID:            id,
			Name:          displayName,
			Description:   description,
			TransportKind: string(spec.Kind),
			Command:       spec.Command,
			Args:          spec.Args,
			Env:           spec.Env,
			Capabilities:  capInputs,
			Tags:          tags,
		}); err != nil {
			logging.Warn("Facade", "failed to persist server %q to metadata store: %v", id, err)
		}
	}

	go f.connectAsync(id, spec)

	return *s, nil
}

func (f *Facade) connectAsync(id string, spec registry.LaunchSpec) {
	if err := f.Adapters.Connect(context.Background(), id, spec); err != nil {
		logging.Warn("Facade", "failed to connect %q: %v", id, err)
		if updErr := f.Registry.UpdateHealth(id, registry.StatusOffline, nil); updErr != nil {
			logging.Warn("Facade", "failed to record offline status for %q: %v", id, updErr)
		}
		return
	}
	if err := f.Registry.UpdateHealth(id, registry.StatusOnline, nil); err != nil {
		logging.Warn("Facade", "failed to record online status for %q: %v", id, err)
	}
}

// UnregisterServer implements spec.md §4.8's unregister_server: disconnect,
// remove from C2 and C3 (C3 cascades tools/usage/tags), and invalidate every
// cache entry tagged with id.
func (f *Facade) UnregisterServer(ctx context.Context, id string) error {
	if err := f.Adapters.Disconnect(id); err != nil {
		logging.Warn("Facade", "failed to disconnect %q during unregister: %v", id, err)
	}

	if f.Metadata != nil {
		if err := f.Metadata.DeleteServer(ctx, id); err != nil {
			logging.Warn("Facade", "failed to delete %q from metadata store: %v", id, err)
		}
	}

	if err := f.Registry.Unregister(id); err != nil {
		return err
	}

	f.Cache.InvalidateTag(id)
	return nil
}
