package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/cysec-io/cysec/internal/app"
)

type keyView struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Version   int    `json:"version"`
	SizeBits  int    `json:"size_bits"`
	Material  string `json:"material"`
}

func newKeyView(id, namespace string, version, sizeBits int, material []byte) keyView {
	return keyView{
		ID:        id,
		Namespace: namespace,
		Version:   version,
		SizeBits:  sizeBits,
		Material:  hex.EncodeToString(material),
	}
}

// RunGenerateKey implements "generate-key NAMESPACE --bits N --version V":
// mint and persist a fresh key under the active master key.
func RunGenerateKey(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool, namespace string, sizeBits, version int) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	keyMgr, err := container.KeyManager()
	if err != nil {
		return err
	}

	key, err := keyMgr.Generate(ctx, sizeBits, namespace, version)
	if err != nil {
		return err
	}
	defer key.Close()

	view := newKeyView(key.ID, key.Namespace, key.Version, key.SizeBits, key.Material)
	return writeResult(w, jsonMode, view, "generated "+key.ID)
}

// RunRetrieveKey implements "retrieve-key NAMESPACE VERSION [IDSUFFIX]".
func RunRetrieveKey(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool, namespace string, version int, idSuffix string) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	keyMgr, err := container.KeyManager()
	if err != nil {
		return err
	}

	key, err := keyMgr.Retrieve(ctx, namespace, version, idSuffix)
	if err != nil {
		return err
	}
	defer key.Close()

	view := newKeyView(key.ID, key.Namespace, key.Version, key.SizeBits, key.Material)
	return writeResult(w, jsonMode, view, view.Material)
}

// RunRotateKey implements "rotate-key NAMESPACE": generate the next version
// of namespace's key, leaving the previous version retrievable.
func RunRotateKey(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool, namespace string) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	keyMgr, err := container.KeyManager()
	if err != nil {
		return err
	}

	current, next, err := keyMgr.Rotate(ctx, namespace)
	if err != nil {
		return err
	}
	defer current.Close()
	defer next.Close()

	result := map[string]any{
		"previous_version": current.Version,
		"new_version":      next.Version,
		"new_id":           next.ID,
	}
	human := fmt.Sprintf("rotated %s: version %d -> %d", namespace, current.Version, next.Version)
	return writeResult(w, jsonMode, result, human)
}

// RunBatchGenerateKeys implements "batch-generate-keys" over count
// namespaces sharing a prefix, useful for provisioning a fleet of
// per-tenant keys in one command.
func RunBatchGenerateKeys(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool, namespacePrefix string, count, sizeBits int) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	keyMgr, err := container.KeyManager()
	if err != nil {
		return err
	}

	views := make([]keyView, 0, count)
	for i := 1; i <= count; i++ {
		namespace := namespacePrefix + "-" + strconv.Itoa(i)
		key, err := keyMgr.Generate(ctx, sizeBits, namespace, 1)
		if err != nil {
			return err
		}
		views = append(views, newKeyView(key.ID, key.Namespace, key.Version, key.SizeBits, key.Material))
		key.Close()
	}
	return writeResult(w, jsonMode, views, joinKeyViews(views))
}

func joinKeyViews(views []keyView) string {
	out := ""
	for i, v := range views {
		if i > 0 {
			out += "\n"
		}
		out += v.ID
	}
	return out
}
