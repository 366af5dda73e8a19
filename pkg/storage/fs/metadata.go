package fs

import (
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/graphpart/graphpart/pkg/xerrors"
)

// saveCount writes a count as the only line of a text file.
func saveCount(path string, count int) error {
	data := strconv.Itoa(count) + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to save count to %s", path)
	}
	return nil
}

// loadCount reads a count back. A missing file is the "could not load
// data" condition: the count has not been computed yet.
func loadCount(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, xerrors.Wrapf(err, xerrors.ErrorTypeNotFound, "could not load count from %s", path)
		}
		return 0, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to load count from %s", path)
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, xerrors.Wrapf(err, xerrors.ErrorTypeData, "malformed count file %s", path)
	}
	return count, nil
}

// saveNames writes a name list as an indented JSON array.
func saveNames(path string, names []string) error {
	data, err := json.MarshalIndent(names, "", "    ")
	if err != nil {
		return xerrors.Wrap(err, xerrors.ErrorTypeInternal, "failed to encode name list")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to save names to %s", path)
	}
	return nil
}

// loadNames reads a name list back. A missing file is the "could not load
// data" condition.
func loadNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.Wrapf(err, xerrors.ErrorTypeNotFound, "could not load names from %s", path)
		}
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to load names from %s", path)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeData, "malformed names file %s", path)
	}
	return names, nil
}

// fileExists reports whether path is an existing regular file.
func fileExists(path string) (bool, error) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to stat %s", path)
	}
	return st.Mode().IsRegular(), nil
}
