package vsphere

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"

	"github.com/vmware/govmomi/vapi/library"
	"github.com/vmware/govmomi/vim25/soap"
)

// EnsureLibrary creates the named local content library on the default
// datastore if it does not exist yet. The lookup miss is an expected
// branch.
func (c *Client) EnsureLibrary(ctx context.Context, name string) error {
	m := library.NewManager(c.rest)

	if _, err := m.GetLibraryByName(ctx, name); err == nil {
		log.Printf("Content library %q already exists", name)
		return nil
	}

	log.Printf("Creating content library %q...", name)
	lib := library.Library{
		Name: name,
		Type: "LOCAL",
		Storage: []library.StorageBacking{{
			DatastoreID: c.datastore.Reference().Value,
			Type:        "DATASTORE",
		}},
	}
	if _, err := m.CreateLibrary(ctx, lib); err != nil {
		return fmt.Errorf("failed to create content library %s: %w", name, err)
	}
	return nil
}

// HasLibraryItem probes for an item by name in the named library.
func (c *Client) HasLibraryItem(ctx context.Context, libraryName, itemName string) (bool, error) {
	m := library.NewManager(c.rest)

	lib, err := m.GetLibraryByName(ctx, libraryName)
	if err != nil {
		return false, fmt.Errorf("content library %s not found: %w", libraryName, err)
	}

	ids, err := m.FindLibraryItems(ctx, library.FindItem{LibraryID: lib.ID, Name: itemName})
	if err != nil {
		return false, fmt.Errorf("failed to search library %s: %w", libraryName, err)
	}
	return len(ids) > 0, nil
}

// ImportOVA uploads a local OVA file as a new OVF item in the named
// library. The caller checks HasLibraryItem first; importing an existing
// name is an error.
func (c *Client) ImportOVA(ctx context.Context, libraryName, itemName, ovaPath string) error {
	m := library.NewManager(c.rest)

	lib, err := m.GetLibraryByName(ctx, libraryName)
	if err != nil {
		return fmt.Errorf("content library %s not found: %w", libraryName, err)
	}

	info, err := os.Stat(ovaPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", ovaPath, err)
	}

	log.Printf("Importing %s into library %q as %q...", filepath.Base(ovaPath), libraryName, itemName)

	itemID, err := m.CreateLibraryItem(ctx, library.Item{
		LibraryID: lib.ID,
		Name:      itemName,
		Type:      "ovf",
	})
	if err != nil {
		return fmt.Errorf("failed to create library item %s: %w", itemName, err)
	}

	sessionID, err := m.CreateLibraryItemUpdateSession(ctx, library.Session{LibraryItemID: itemID})
	if err != nil {
		return fmt.Errorf("failed to open upload session: %w", err)
	}

	if err := c.uploadItemFile(ctx, m, sessionID, ovaPath, info.Size()); err != nil {
		_ = m.CancelLibraryItemUpdateSession(ctx, sessionID)
		_ = m.DeleteLibraryItem(ctx, &library.Item{ID: itemID, LibraryID: lib.ID})
		return err
	}

	if err := m.CompleteLibraryItemUpdateSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to complete upload session: %w", err)
	}

	log.Printf("Imported library item %q", itemName)
	return nil
}

// uploadItemFile pushes the OVA bytes into an open update session.
func (c *Client) uploadItemFile(ctx context.Context, m *library.Manager, sessionID, ovaPath string, size int64) error {
	update, err := m.AddLibraryItemFile(ctx, sessionID, library.UpdateFile{
		Name:       filepath.Base(ovaPath),
		SourceType: "PUSH",
		Size:       size,
	})
	if err != nil {
		return fmt.Errorf("failed to register upload file: %w", err)
	}

	endpoint, err := url.Parse(update.UploadEndpoint.URI)
	if err != nil {
		return fmt.Errorf("invalid upload endpoint: %w", err)
	}

	f, err := os.Open(ovaPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", ovaPath, err)
	}
	defer func() {
		_ = f.Close()
	}()

	param := soap.DefaultUpload
	param.ContentLength = size
	if err := c.vim.Upload(ctx, f, endpoint, &param); err != nil {
		return fmt.Errorf("failed to upload %s: %w", filepath.Base(ovaPath), err)
	}
	return nil
}

// libraryItemID resolves a library item by name.
func (c *Client) libraryItemID(ctx context.Context, libraryName, itemName string) (string, error) {
	m := library.NewManager(c.rest)

	lib, err := m.GetLibraryByName(ctx, libraryName)
	if err != nil {
		return "", fmt.Errorf("content library %s not found: %w", libraryName, err)
	}
	ids, err := m.FindLibraryItems(ctx, library.FindItem{LibraryID: lib.ID, Name: itemName})
	if err != nil {
		return "", fmt.Errorf("failed to search library %s: %w", libraryName, err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("library item %s not found in %s", itemName, libraryName)
	}
	return ids[0], nil
}
