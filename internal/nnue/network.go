package nnue

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var errBadNetwork = errors.New("nnue: bad network file")

type Topology struct {
	Inputs        uint32
	Outputs       uint32
	HiddenNeurons []uint32
}

// Binary specification for the network file:
// - All the data is stored in little-endian layout
// - All the matrices are written in column-major
// - The magic number/version consists of 4 bytes (int32):
//   - 66 (which is the ASCII code for B), uint8
//   - 90 (which is the ASCII code for Z), uint8
//   - 2 The major part of the current version number, uint8
//   - 0 The minor part of the current version number, uint8
//
// - 4 bytes (int32) to denote the network ID, here the feature set
// - 4 bytes (int32) to denote input size
// - 4 bytes (int32) to denote output size
// - 4 bytes (int32) number to represent the number of hidden layers
// - 4 bytes (int32) for the size of each hidden layer
// - All weights for a layer (float32), followed by all the biases of the same layer
// - Other layers follow just like the above point
func (n *Network) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var w = bufio.NewWriter(f)

	var layers = n.main.layers()
	var header = []uint32{
		uint32(n.FeatureSet),
		uint32(layers[0].InputSize()),
		uint32(layers[len(layers)-1].OutputSize()),
		uint32(len(layers) - 1),
	}
	for _, l := range layers[:len(layers)-1] {
		header = append(header, uint32(l.OutputSize()))
	}

	if _, err = w.Write([]byte{66, 90, 2, 0}); err != nil {
		return err
	}
	if err = binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, l := range layers {
		if err = writeSlice(w, l.weights.Data); err != nil {
			return err
		}
		if err = writeSlice(w, l.biases.Data); err != nil {
			return err
		}
	}
	if err = w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// Load reads a network saved by SaveFile.
func Load(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var n, lerr = readNetwork(bufio.NewReader(f))
	if lerr != nil {
		return nil, fmt.Errorf("load %v: %w", path, lerr)
	}
	return n, nil
}

func readNetwork(r io.Reader) (*Network, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic[0] != 66 || magic[1] != 90 {
		return nil, fmt.Errorf("%w: magic word does not match", errBadNetwork)
	}
	if magic[2] != 2 || magic[3] != 0 {
		return nil, fmt.Errorf("%w: version %v.%v is not supported", errBadNetwork, magic[2], magic[3])
	}

	var header [4]uint32
	if err := binary.Read(r, binary.LittleEndian, header[:]); err != nil {
		return nil, err
	}
	var featureSet = FeatureSet(header[0])
	var topology = Topology{Inputs: header[1], Outputs: header[2]}
	if featureSet < FeatureP768 || featureSet > FeatureP768StmCastling ||
		int(topology.Inputs) != featureSet.Size() {
		return nil, fmt.Errorf("%w: feature set %v with %v inputs", errBadNetwork, header[0], topology.Inputs)
	}
	if topology.Outputs != 1 || header[3] != 2 {
		return nil, fmt.Errorf("%w: unsupported topology", errBadNetwork)
	}
	topology.HiddenNeurons = make([]uint32, header[3])
	if err := binary.Read(r, binary.LittleEndian, topology.HiddenNeurons); err != nil {
		return nil, err
	}
	if topology.HiddenNeurons[0] == 0 || topology.HiddenNeurons[0] > 1<<16 ||
		topology.HiddenNeurons[1] != hidden2Size {
		return nil, fmt.Errorf("%w: hidden layers %v", errBadNetwork, topology.HiddenNeurons)
	}

	var hidden = int(topology.HiddenNeurons[0])
	var n = NewNetwork(featureSet, hidden, nil)
	for _, l := range n.main.layers() {
		if err := readSlice(r, l.weights.Data); err != nil {
			return nil, err
		}
		if err := readSlice(r, l.biases.Data); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func writeSlice(w io.Writer, data []float64) error {
	var buf [4]byte
	for j := range data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(data[j])))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func readSlice(r io.Reader, data []float64) error {
	var buf [4]byte
	for j := range data {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		data[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[:])))
	}
	return nil
}
