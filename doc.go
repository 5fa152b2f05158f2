/*
 * doc.go, part of gotaf.
 *
 * Copyright 2021 The gotaf developers
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

/*Package taf is the core of the gotaf trajectory analysis library. It provides
the frame data model and the source contract the analysis machinery is built on.

	**gotaf capabilities**

    A Frame type holding one simulation snapshot: positions, velocities,
	forces, box vectors, title, atom metadata and an index group, every one
	of them optional, plus the step and time the snapshot belongs to.
	Presence of an optional field is simply its pointer not being nil, so it
	cannot disagree with the data.

    Full deep copies of frames, validation of frame consistency, resource
	release, and a field-by-field comparison with caller-given tolerances.

    A Traj interface for frame sources that fill caller-owned buffers, with
	an in-memory implementation (MemTraj) and on-disk formats in the traj/xvf
	and traj/dcd subpackages. The end of a trajectory is reported through the
	LastFrameError interface, so it is never confused with a failure.

    Minimum-image displacements and distances under no, rectangular or
	triclinic periodic boundary conditions (the PBC type).

    Topologies with per-atom masses, charges and names, usable by the
	analysis modules of the analyze subpackage.

The analyze subpackage runs pluggable analysis modules over any Traj; the
rmsd, rdf, thermo and trajout subpackages are modules built on it.

gotaf implements its own matrix type for per-atom data, v3.Matrix, based on
gonum.org/v1/gonum/mat. Each row of a v3.Matrix represents one point in space.*/
package taf
