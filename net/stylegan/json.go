package stylegan

import "compress/zlib"
import "encoding/json"
import "io"
import "os"

// WriteZlibStateToFile writes a StateDict to a zlib-compressed JSON file.
func WriteZlibStateToFile(sd StateDict, name string) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	err = WriteZlibState(sd, file)
	file.Close()
	return err
}

// WriteZlibState writes a StateDict to a writer.
func WriteZlibState(sd StateDict, w io.Writer) error {
	zw := zlib.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(sd); err != nil {
		return err
	}
	return zw.Close()
}

// ReadZlibStateFromFile reads a StateDict from a zlib-compressed JSON file.
func ReadZlibStateFromFile(name string) (StateDict, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	sd, err := ReadZlibState(file)
	file.Close()
	return sd, err
}

// ReadZlibState reads a StateDict from a reader.
func ReadZlibState(r io.Reader) (StateDict, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	var sd StateDict
	if err := json.NewDecoder(zr).Decode(&sd); err != nil {
		return nil, err
	}
	return sd, zr.Close()
}
