package mesh

import (
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"voxelstream/internal/world"
)

// ExportGLB writes batches as a binary glTF scene, one mesh node per batch,
// with vertex positions in world block units.
func ExportGLB(path string, batches []*Batch, dim world.Dimensions) error {
	doc := BuildDocument(batches, dim)
	if len(doc.Meshes) == 0 {
		return errors.New("no meshes to export")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create export directory")
		}
	}
	if err := gltf.SaveBinary(doc, path); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// BuildDocument converts batches into an in-memory glTF document.
func BuildDocument(batches []*Batch, dim world.Dimensions) *gltf.Document {
	doc := gltf.NewDocument()
	for _, batch := range batches {
		if batch == nil || len(batch.Vertices) == 0 {
			continue
		}
		positions, normals, colors := expand(batch, dim)
		indices := make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
		prim := &gltf.Primitive{
			Indices: gltf.Index(modeler.WriteIndices(doc, indices)),
			Attributes: map[string]uint32{
				"POSITION": modeler.WritePosition(doc, positions),
				"NORMAL":   modeler.WriteNormal(doc, normals),
				"COLOR_0":  modeler.WriteColor(doc, colors),
			},
		}
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: batch.Group.String(), Primitives: []*gltf.Primitive{prim}})
		doc.Nodes = append(doc.Nodes, &gltf.Node{Name: batch.Group.String(), Mesh: gltf.Index(uint32(len(doc.Meshes) - 1))})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}
	return doc
}

func expand(batch *Batch, dim world.Dimensions) ([][3]float32, [][3]float32, [][4]uint8) {
	positions := make([][3]float32, 0, len(batch.Vertices))
	normals := make([][3]float32, 0, len(batch.Vertices))
	colors := make([][4]uint8, 0, len(batch.Vertices))
	for i, coord := range batch.Chunks {
		origin := dim.Origin(coord)
		offset := mgl32.Vec3{float32(origin.X), 0, float32(origin.Z)}
		start, count := batch.Index.Start[i], batch.Index.Count[i]
		for _, packed := range batch.Vertices[start : start+count] {
			v := Unpack(packed)
			pos := offset.Add(mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)})
			positions = append(positions, [3]float32(pos))
			normals = append(normals, [3]float32(v.Side.Normal()))
			colors = append(colors, shade(v))
		}
	}
	return positions, normals, colors
}

// shade darkens the block colour by face light, keeping a floor so caves
// stay visible in debug exports.
func shade(v Vertex) [4]uint8 {
	base := world.ColorOf(v.Type)
	f := 0.25 + 0.75*float32(v.Light)/float32(world.MaxLight)
	return [4]uint8{
		uint8(float32(base.R) * f),
		uint8(float32(base.G) * f),
		uint8(float32(base.B) * f),
		base.A,
	}
}
