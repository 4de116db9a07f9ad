package main

import (
	"archive/tar"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/dkoutsos/agentsim/internal/config"
)

// runBackup snapshots the sqlite store into a zstd-compressed tar archive.
// WAL sidecar files are included when present so a restore is consistent.
func runBackup(args []string) error {
	var outputPath, storePath string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			i++
			outputPath = args[i]
		case "-db":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -db")
			}
			i++
			storePath = args[i]
		}
	}

	if outputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: agentsim backup -f <output.tar.zst> [-db <store path>]\n")
		return fmt.Errorf("missing -f flag")
	}
	if storePath == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		storePath = cfg.Store.Path
	}

	files := storeFiles(storePath)
	if len(files) == 0 {
		return fmt.Errorf("no store files found at %s", storePath)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	for _, path := range files {
		slog.Info("backing up store file", "path", path)
		if err := archiveFile(tw, path); err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}
	}

	// Close everything explicitly to catch write errors
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	info, _ := os.Stat(outputPath)
	size := int64(0)
	if info != nil {
		size = info.Size()
	}

	fmt.Printf("Backup complete: %d files, %s\n", len(files), formatSize(size))
	return nil
}

// runRestore extracts a backup archive into the store directory.
func runRestore(args []string) error {
	var inputPath, storePath string
	overwrite := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			i++
			inputPath = args[i]
		case "-db":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -db")
			}
			i++
			storePath = args[i]
		case "-overwrite":
			overwrite = true
		}
	}

	if inputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: agentsim restore -f <backup.tar.zst> [-db <store path>] [-overwrite]\n")
		return fmt.Errorf("missing -f flag")
	}
	if storePath == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		storePath = cfg.Store.Path
	}

	targetDir := filepath.Dir(storePath)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	restored := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		name := filepath.Base(filepath.Clean(hdr.Name))
		if name == "." || name == "/" || strings.HasPrefix(name, "..") {
			continue
		}
		dest := filepath.Join(targetDir, name)

		if !overwrite {
			if _, err := os.Stat(dest); err == nil {
				return fmt.Errorf("%s already exists, add -overwrite to replace it", dest)
			}
		}

		if err := extractFile(tr, dest, hdr.FileInfo().Mode()); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
		slog.Info("restored store file", "path", dest)
		restored++
	}

	fmt.Printf("Restore complete: %d files\n", restored)
	return nil
}

// storeFiles lists the database file and any WAL sidecars that exist.
func storeFiles(dbPath string) []string {
	var files []string
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			files = append(files, p)
		}
	}
	return files
}

func archiveFile(tw *tar.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

func extractFile(tr *tar.Reader, dest string, mode os.FileMode) error {
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, tr); err != nil {
		return err
	}
	return f.Close()
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
