package structapi

import (
	"bytes"
	"encoding/gob"
	"io/ioutil"
	"os"
	"path/filepath"
)

// dumpHeader prefixes every dump file. The query text is length
// prefixed so the gob encoded row can follow immediately.
type dumpHeader struct {
	QueryLen uint32
	Query    string `struct:"sizefrom=QueryLen"`
}

// NewFileDumper spills rows into one file per row under basePath.
// Both callbacks may be nil.
func NewFileDumper(basePath string,
	failSaveFunc func(query string, args []interface{}, err error),
	failOpenFunc func(err error)) (Dumper, error) {
	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, err
		}
	}
	if failSaveFunc == nil {
		failSaveFunc = func(_ string, _ []interface{}, _ error) {
			// Nothing
		}
	}
	if failOpenFunc == nil {
		failOpenFunc = func(_ error) {
			// Nothing
		}
	}
	return &FileDumper{
		basePath:     basePath,
		failSaveFunc: failSaveFunc,
		failOpenFunc: failOpenFunc,
	}, nil
}

type FileDumper struct {
	basePath     string
	failSaveFunc func(query string, args []interface{}, err error)
	failOpenFunc func(err error)
}

func (d *FileDumper) Dump(query string, rows [][]interface{}) {
	for _, row := range rows {
		if err := d.dumpRow(query, row); err != nil {
			d.failSaveFunc(query, row, err)
			return
		}
	}
}

func (d *FileDumper) dumpRow(query string, row []interface{}) error {
	head, err := Marshal(dumpHeader{QueryLen: uint32(len(query)), Query: query})
	if err != nil {
		return err
	}
	f, err := ioutil.TempFile(d.basePath, "dump")
	if err != nil {
		return err
	}
	if _, err := f.Write(head); err != nil {
		f.Close()
		return err
	}
	if err := gob.NewEncoder(f).Encode(&row); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (d *FileDumper) Return() (exist bool, query string, rows []interface{}) {
	dir, err := os.Open(d.basePath)
	if err != nil {
		d.failOpenFunc(err)
		return
	}
	names, err := dir.Readdirnames(-1)
	if cerr := dir.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		d.failOpenFunc(err)
		return
	}
	if len(names) == 0 {
		return false, "", nil
	}

	path := filepath.Join(d.basePath, names[0])
	data, err := ioutil.ReadFile(path)
	if err != nil {
		d.failOpenFunc(err)
		return
	}
	st := NewStream(data)
	var head dumpHeader
	if err := UnmarshalStream(st, &head); err != nil {
		d.failOpenFunc(err)
		return
	}
	if err := gob.NewDecoder(bytes.NewReader(st.Rest())).Decode(&rows); err != nil {
		d.failOpenFunc(err)
		return false, "", nil
	}
	if err := os.Remove(path); err != nil {
		d.failOpenFunc(err)
		return false, "", nil
	}
	return true, head.Query, rows
}
