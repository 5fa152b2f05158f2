/*
 * doc.go, part of gotaf
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
 *
 */

/*
Package xvf implements the xvf trajectory format, the native format of
gotaf. xvf is a compressed plain-text format that can carry, per frame,
any combination of positions, velocities and forces, plus the simulation
step and time and the vectors of the simulation box. It aims to produce
reasonably small files that are trivial to read and write, so readers and
writers can be implemented in other languages with little effort.

Format specification:

An xvf file may only contain ASCII symbols, and is compressed. The
compression is selected by the last letter of the file name: 'l' for LZW,
'z' for gzip, 'r' for DEFLATE, and 'f' or 's' (or anything else) for
z-standard. The recommended extension is .xvf, which selects z-standard.

The file starts with a header. Each header line is a key=value pair. The
keys "prec" (the precision, see below) and "title" (a free-form name for
the system) are defined; implementations must preserve keys they do not
understand. The header ends with a line of the form

	** natoms mask

where natoms is the number of atoms in every frame and mask names the
per-atom fields each frame carries: "x" for positions, "v" for
velocities, "f" for forces, concatenated in that order (so "xv", "xf",
"xvf" and so on). A missing mask means "x". The sequence "**" at the
start of a line may not appear anywhere else in the file.

After the header come the frames. A frame holds one block of natoms lines
for each field in the mask, in x, v, f order. Each line holds 3 integers:
the Cartesian components of that atom's field, multiplied by 10^prec and
rounded. The default precision is 2.

Each frame ends with a terminator line starting with "*" (no whitespace
before), optionally followed by the step (an integer) and the time in
picoseconds, optionally followed by the 9 components of the box vectors
in Angstrom, all separated by whitespace. A terminator with any other
number of fields after the "*" is read as if it were a bare "*".

A file with an "x" mask, no step/time on the terminators and a precision
in the header is also a valid stf file (the format of goChem), except for
the compression, which stf fixes to z-standard regardless of the name.
*/
package xvf
