package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/container"
)

const (
	fieldArtifact  = "artifact"
	fieldTimestamp = "timestamp"
)

// ArtifactCodec serializes artifacts into opaque bytes.
// Name is stored as the opaque field's tag.
type ArtifactCodec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// GobCodec encodes artifacts with encoding/gob. It is the default codec.
type GobCodec struct{}

func (GobCodec) Name() string { return "gob" }

func (GobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// JSONCodec encodes artifacts as JSON.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// RawCodec stores []byte artifacts verbatim.
type RawCodec struct{}

func (RawCodec) Name() string { return "raw" }

func (RawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("raw codec needs []byte, got %T", v)
	}
	return b, nil
}

func (RawCodec) Unmarshal(data []byte, v any) error {
	dst, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec needs *[]byte, got %T", v)
	}
	*dst = append([]byte(nil), data...)
	return nil
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (ArtifactCodec, error) {
	switch name {
	case "gob", "":
		return GobCodec{}, nil
	case "json":
		return JSONCodec{}, nil
	case "raw":
		return RawCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown artifact codec %q (want gob, json or raw)", name)
	}
}

// writeInstance allocates the next instance id under run and stores the
// artifact and a timestamp in it.
//
// The instance group is created before the artifact is serialized, so an
// artifact failure leaves an instance without an artifact behind. A timestamp
// failure is reported and otherwise ignored.
func writeInstance(
	ctx context.Context,
	run *container.Group,
	artifact any,
	codec ArtifactCodec,
	now time.Time,
	rep reporter,
) (string, error) {
	instances, err := run.RequireGroup(ctx, groupInstances)
	if err != nil {
		return "", fmt.Errorf("require instances: %w", err)
	}
	names, err := instances.Children(ctx)
	if err != nil {
		return "", fmt.Errorf("list instances: %w", err)
	}

	id := NextAutoID(names)
	inst, err := instances.CreateGroup(ctx, id)
	if err != nil {
		return "", fmt.Errorf("create instance: %w", err)
	}

	data, err := codec.Marshal(artifact)
	if err != nil {
		return id, &Error{
			Kind:    KindArtifactWrite,
			Op:      "save",
			Path:    inst.Path(),
			Message: fmt.Sprintf("serialize artifact with %s codec", codec.Name()),
			Err:     err,
		}
	}
	if err := inst.WriteOpaque(ctx, fieldArtifact, codec.Name(), data); err != nil {
		return id, &Error{
			Kind:    KindArtifactWrite,
			Op:      "save",
			Path:    inst.Path(),
			Message: "store artifact",
			Err:     err,
		}
	}

	if err := inst.Write(ctx, fieldTimestamp, now.UTC().Format(time.RFC3339Nano)); err != nil {
		rep.report(Diagnostic{
			Kind:    TimestampFallback,
			Path:    inst.Path(),
			Message: "timestamp not written",
			Err:     err,
		})
	}
	return id, nil
}

// readArtifact decodes the artifact of inst into dst.
//
// When the typed read fails, the stored field is inspected without decoding
// and the description is reported and added to the error message. The
// returned error always wraps the original failure.
func readArtifact(ctx context.Context, inst *container.Group, codec ArtifactCodec, dst any, rep reporter) error {
	f, err := inst.Read(ctx, fieldArtifact)
	if err == nil {
		var data []byte
		data, err = f.Opaque()
		if err == nil {
			err = codec.Unmarshal(data, dst)
		}
		if err == nil {
			return nil
		}
	}

	raw := describeArtifact(ctx, inst, codec)
	rep.report(Diagnostic{
		Kind:    ArtifactRawDump,
		Path:    inst.Path(),
		Message: raw,
		Err:     err,
	})
	return &Error{
		Kind:    KindArtifactRead,
		Path:    inst.Path(),
		Message: fmt.Sprintf("decode artifact with %s codec (%s)", codec.Name(), raw),
		Err:     err,
	}
}

// describeArtifact reports what is actually stored for an instance's artifact.
// It never fails.
func describeArtifact(ctx context.Context, inst *container.Group, codec ArtifactCodec) string {
	f, err := inst.Read(ctx, fieldArtifact)
	if err != nil {
		keys, listErr := inst.Children(ctx)
		if listErr != nil {
			return fmt.Sprintf("artifact unreadable: %v", err)
		}
		return fmt.Sprintf("artifact unreadable: %v; instance holds %v", err, keys)
	}

	parts := []string{fmt.Sprintf("stored %s", f.DType)}
	if f.Tag != "" {
		parts = append(parts, fmt.Sprintf("tag %q", f.Tag))
		if f.Tag != codec.Name() {
			parts = append(parts, fmt.Sprintf("written by %s codec", f.Tag))
		}
	}
	parts = append(parts, fmt.Sprintf("%d bytes", f.Size()))

	if data, err := f.Opaque(); err == nil {
		if keys := mappingKeys(data); keys != nil {
			parts = append(parts, fmt.Sprintf("mapping keys %v", keys))
		}
	}
	return strings.Join(parts, ", ")
}

// mappingKeys returns the sorted keys of data when it is a JSON object.
func mappingKeys(data []byte) []string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// readTimestamp returns the instance timestamp, or "" when none was written.
func readTimestamp(ctx context.Context, inst *container.Group, rep reporter) (string, error) {
	f, err := inst.Read(ctx, fieldTimestamp)
	if errors.Is(err, container.ErrNotExist) {
		return "", nil
	}
	if errors.Is(err, container.ErrNotField) {
		rep.report(Diagnostic{
			Kind:    TimestampFallback,
			Path:    inst.Path() + "/" + fieldTimestamp,
			Message: "timestamp is a group",
			Err:     err,
		})
		return "", nil
	}
	if err != nil {
		return "", err
	}
	ts, err := f.Text()
	if err != nil {
		rep.report(Diagnostic{
			Kind:    TimestampFallback,
			Path:    f.Path,
			Message: "timestamp is not a string",
			Err:     err,
		})
		return f.Describe(), nil
	}
	return ts, nil
}
