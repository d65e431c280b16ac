// Package hnf reads and writes neuron archives: single container files
// holding skeletons, meshes and dotprops of many neurons plus tabular
// annotations, under a versioned schema.
//
// Each neuron is a group keyed by its normalized id (see NormalizeID).
// A representation block stores a serialized blob, a raw columnar
// layout, or both:
//
//	/                       format_spec, format_url
//	/<id>                   neuron_name
//	/<id>/skeleton          .serialized_navis, node_id, parent_id, x, y, z, radius
//	/<id>/mesh              .serialized_navis, vertices, faces, skeleton_map
//	/<id>/dotprops          .serialized_navis, points, vect, alpha
//	/<id>/annotations/<n>   one dataset per column
//
// Basic usage:
//
//	err := hnf.Write(ctx, "neurons.h5", []hnf.Neuron{sk, mesh})
//
//	res, err := hnf.Read(ctx, "neurons.h5",
//	    hnf.WithRepresentations(hnf.MustParseReadPolicy("mesh->skeleton")),
//	    hnf.WithOnError(hnf.ErrorModeWarn),
//	)
//	for _, n := range res.Neurons {
//	    fmt.Println(n.NeuronInfo().ID, n.Kind())
//	}
//
// The container is a pure-Go subset of HDF5; files are readable by other
// HDF5 tools and the raw layout is the portable part of the format.
package hnf
