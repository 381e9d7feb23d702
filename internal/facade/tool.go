package facade

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"time"

	"mcprouter/internal/adapter"
	"mcprouter/internal/rerr"
	"mcprouter/pkg/logging"
)

const execCacheTTL = 300 * time.Second

func init() {
	// Same reasoning as RouteResult's registration in route.go: the disk
	// tier's gob encoding needs every concrete type passed through its
	// any-typed Entry.Value registered, or a successful disk decode here
	// would panic the v.(*adapter.ToolResult) assertion.
	gob.Register(&adapter.ToolResult{})
}

// toolSchema is the minimal JSON Schema shape this router validates
// against: presence of required properties. Types are not coerced or
// checked (spec.md §4.8: "Type coercion is not performed — mismatches
// surface as ValidationError" refers only to the required-field check
// actually implemented here; unknown properties are let through).
type toolSchema struct {
	Required []string `json:"required"`
}

// ExecuteTool implements spec.md §4.8's execute_tool operation: validate
// args against the tool's schema, then either call straight through
// (noCache) or check the cache, delegating to the Adapter Framework on a
// miss and recording a UsageRecord in the Metadata Store whether the call
// succeeds or fails. spec.md §9 resolves the idempotency open question by
// placing the decision with the caller: some tools (filesystem writes,
// message sends) are not idempotent, so noCache lets them bypass the
// 300s cache entirely while still recording usage.
func (f *Facade) ExecuteTool(ctx context.Context, serverID, toolName string, args map[string]any, noCache bool) (*adapter.ToolResult, error) {
	if _, ok := f.Registry.Lookup(serverID); !ok {
		return nil, rerr.Validation("ExecuteTool", "unknown server id %q", serverID)
	}

	if err := f.validateArgs(ctx, serverID, toolName, args); err != nil {
		return nil, err
	}

	if noCache {
		return f.callAndRecordUsage(ctx, serverID, toolName, args)
	}

	key, err := f.execCacheKey(serverID, toolName, args)
	if err != nil {
		return nil, err
	}

	ttl := execCacheTTL
	v, err := f.Cache.Cached(key, func() (any, error) {
		return f.callAndRecordUsage(ctx, serverID, toolName, args)
	}, &ttl, []string{"exec", serverID})
	if err != nil {
		return nil, err
	}
	return v.(*adapter.ToolResult), nil
}

// callAndRecordUsage is the cache-miss (or no_cache) path: it always
// records usage (even on failure) but only ever returns a non-nil error on
// failure, so cache.Manager.Cached never stores a failed execution.
func (f *Facade) callAndRecordUsage(ctx context.Context, serverID, toolName string, args map[string]any) (*adapter.ToolResult, error) {
	start := time.Now()
	result, err := f.Adapters.ExecuteTool(ctx, serverID, toolName, args)
	elapsed := time.Since(start).Seconds()

	if f.Metadata != nil {
		if usageErr := f.Metadata.AppendUsage(ctx, serverID, toolName, elapsed, err == nil); usageErr != nil {
			logging.Warn("Facade", "failed to record usage for %s/%s: %v", serverID, toolName, usageErr)
		}
	}

	if err != nil {
		return nil, rerr.Tool("ExecuteTool", err, "adapter reported failure executing %s on %s", toolName, serverID)
	}
	return result, nil
}

func (f *Facade) validateArgs(ctx context.Context, serverID, toolName string, args map[string]any) error {
	if f.Metadata == nil {
		return nil
	}
	srv, err := f.Metadata.ReadServer(ctx, serverID)
	if err != nil {
		return nil // unknown to C3 yet (e.g. mid-registration); let the adapter surface the real error
	}
	for _, t := range srv.Tools {
		if t.Name != toolName {
			continue
		}
		if t.Schema == "" {
			return nil
		}
		var schema toolSchema
		if err := json.Unmarshal([]byte(t.Schema), &schema); err != nil {
			return nil
		}
		for _, req := range schema.Required {
			if _, ok := args[req]; !ok {
				return rerr.Validation("ExecuteTool", "missing required argument %q for tool %q", req, toolName)
			}
		}
		return nil
	}
	return nil
}

// execCacheKey builds "exec:{server_id}:{tool_name}:{canonical_json(args)}".
// json.Marshal on a map[string]any already emits object keys in sorted
// order, which is exactly the canonicalization spec.md §4.8 asks for.
func (f *Facade) execCacheKey(serverID, toolName string, args map[string]any) (string, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", rerr.Validation("ExecuteTool", "arguments are not JSON-serializable: %v", err)
	}
	return fmt.Sprintf("exec:%s:%s:%s", serverID, toolName, string(data)), nil
}
