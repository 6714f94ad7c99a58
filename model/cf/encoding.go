// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cf

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/moviematch/base/encoding"
	"github.com/juju/errors"
)

const svdHeader = "moviematch/svd/v1"

// Marshal model into byte stream. Only predictable users and items are written.
func (svd *SVD) Marshal(w io.Writer) error {
	if svd.Invalid() {
		return errors.NotAssignedf("model parameters")
	}
	// write header
	if err := encoding.WriteString(w, svdHeader); err != nil {
		return errors.Trace(err)
	}
	// write params
	if err := encoding.WriteGob(w, svd.Params); err != nil {
		return errors.Trace(err)
	}
	// write global mean
	if err := binary.Write(w, binary.LittleEndian, svd.GlobalMean); err != nil {
		return errors.Trace(err)
	}
	// write users
	if err := writeFactors(w, svd.UserIds, svd.UserPredictable, svd.UserBias, svd.UserFactor); err != nil {
		return errors.Trace(err)
	}
	// write items
	if err := writeFactors(w, svd.ItemIds, svd.ItemPredictable, svd.ItemBias, svd.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (svd *SVD) Unmarshal(r io.Reader) error {
	// read header
	header, err := encoding.ReadString(r)
	if err != nil {
		return errors.Annotate(err, "failed to read model header")
	}
	if header != svdHeader {
		return errors.NotValidf("model header %q", header)
	}
	// read params
	if err = encoding.ReadGob(r, &svd.Params); err != nil {
		return errors.Trace(err)
	}
	if svd.NFactors <= 0 {
		return errors.NotValidf("n_factors %d", svd.NFactors)
	}
	// read global mean
	if err = binary.Read(r, binary.LittleEndian, &svd.GlobalMean); err != nil {
		return errors.Trace(err)
	}
	// read users
	if svd.UserIds, svd.UserPredictable, svd.UserBias, svd.UserFactor, err = readFactors(r, svd.NFactors); err != nil {
		return errors.Trace(err)
	}
	// read items
	if svd.ItemIds, svd.ItemPredictable, svd.ItemBias, svd.ItemFactor, err = readFactors(r, svd.NFactors); err != nil {
		return errors.Trace(err)
	}
	svd.buildIndex()
	return nil
}

func writeFactors(w io.Writer, ids []int, predictable *bitset.BitSet, bias []float32, factors [][]float32) error {
	var (
		predictableIds     []int32
		predictableBias    []float32
		predictableFactors [][]float32
	)
	for index, id := range ids {
		if predictable.Test(uint(index)) {
			predictableIds = append(predictableIds, int32(id))
			predictableBias = append(predictableBias, bias[index])
			predictableFactors = append(predictableFactors, factors[index])
		}
	}
	if err := encoding.WriteInts(w, predictableIds); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteVector(w, predictableBias); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteMatrix(w, predictableFactors)
}

func readFactors(r io.Reader, nFactors int) ([]int, *bitset.BitSet, []float32, [][]float32, error) {
	rawIds, err := encoding.ReadInts(r)
	if err != nil {
		return nil, nil, nil, nil, errors.Trace(err)
	}
	bias, err := encoding.ReadVector(r)
	if err != nil {
		return nil, nil, nil, nil, errors.Trace(err)
	}
	if len(bias) != len(rawIds) {
		return nil, nil, nil, nil, errors.NotValidf("%d biases for %d ids", len(bias), len(rawIds))
	}
	factors := make([][]float32, len(rawIds))
	for i := range factors {
		factors[i] = make([]float32, nFactors)
	}
	if err = encoding.ReadMatrix(r, factors); err != nil {
		return nil, nil, nil, nil, errors.Trace(err)
	}
	ids := make([]int, len(rawIds))
	predictable := bitset.New(uint(len(rawIds)))
	for i, id := range rawIds {
		ids[i] = int(id)
		predictable.Set(uint(i))
	}
	return ids, predictable, bias, factors, nil
}

// Save writes the model to a file, creating parent directories when needed.
func (svd *SVD) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return errors.Trace(err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	w := bufio.NewWriter(f)
	if err = svd.Marshal(w); err != nil {
		_ = f.Close()
		return errors.Trace(err)
	}
	if err = w.Flush(); err != nil {
		_ = f.Close()
		return errors.Trace(err)
	}
	return errors.Trace(f.Close())
}

// Load reads a model from a file. It returns a NotFound error if the file does not exist.
func Load(path string) (*SVD, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("model %s", path)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	svd := new(SVD)
	if err = svd.Unmarshal(bufio.NewReader(f)); err != nil {
		return nil, errors.Annotatef(err, "failed to load model %s", path)
	}
	return svd, nil
}
