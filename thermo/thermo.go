//Package thermo derives kinetic quantities from the velocities of a
//trajectory stream: kinetic energy and instantaneous temperature per
//frame, and optionally the mean square force. Velocities are taken in
//A/ps and masses in amu, so energies come out in kJ/mol.
package thermo

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/stat"

	taf "github.com/kassonlab/gotaf"
	"github.com/kassonlab/gotaf/analyze"
)

//KB is the Boltzmann constant, in kJ/(mol*K).
const KB = 0.00831446262

//keunit converts amu*(A/ps)^2 to kJ/mol.
const keunit = 0.01

//Module accumulates the kinetic energy, in kJ/mol, and the instantaneous
//temperature, in K, of every frame, from the velocities and the topology
//masses. The temperature assumes 3N degrees of freedom: there is no
//correction for constraints or for the motion of the center of mass.
type Module struct {
	masses  []float64
	forces  bool
	kes     []float64
	temps   []float64
	msfs    []float64
	times   []float64
	meanKE  float64
	meanT   float64
	outfile string
}

//New returns a kinetic energy/temperature module.
func New() *Module {
	return new(Module)
}

//Forces sets and/or returns whether the module also accumulates the mean
//square force of every frame, in (kJ/mol/A)^2. It has no effect after the
//stream has started.
func (M *Module) Forces(on ...bool) bool {
	if len(on) > 0 {
		M.forces = on[0]
	}
	return M.forces
}

//OutFile sets and/or returns the name of the text file WriteOutput
//writes. An empty name (the default) suppresses the file.
func (M *Module) OutFile(name ...string) string {
	if len(name) > 0 {
		M.outfile = name[0]
	}
	return M.outfile
}

//Configure asks the stream for velocities, plus forces if Forces is set.
func (M *Module) Configure(s *analyze.Settings) error {
	fields := taf.FieldVel
	if M.forces {
		fields |= taf.FieldForce
	}
	s.RequireFields(fields)
	return nil
}

//Init takes the masses from the topology, which must not be nil.
func (M *Module) Init(top taf.Atomer) error {
	if top == nil {
		return fmt.Errorf("thermo: the kinetic energy needs a topology with masses")
	}
	if mm, ok := top.(taf.Masser); ok {
		ms, err := mm.Masses()
		if err != nil {
			return fmt.Errorf("thermo: %v", err)
		}
		M.masses = ms
	} else {
		M.masses = make([]float64, top.Len())
		for i := range M.masses {
			at := top.Atom(i)
			if at == nil || at.Mass <= 0 {
				return fmt.Errorf("thermo: atom %d of the topology has no mass", i)
			}
			M.masses[i] = at.Mass
		}
	}
	M.kes = nil
	M.temps = nil
	M.msfs = nil
	M.times = nil
	M.meanKE = 0
	M.meanT = 0
	return nil
}

//AnalyzeFrame accumulates the kinetic energy and temperature of one
//frame, and its mean square force if Forces is set.
func (M *Module) AnalyzeFrame(frnr int, f *taf.Frame, pbc *taf.PBC, pd *analyze.ParContext) error {
	if f.NAtoms == 0 {
		return fmt.Errorf("thermo: frame %d has no atoms", frnr)
	}
	if f.NAtoms != len(M.masses) {
		return fmt.Errorf("thermo: frame %d has %d atoms, the topology %d", frnr, f.NAtoms, len(M.masses))
	}
	ke := 0.0
	for i := 0; i < f.NAtoms; i++ {
		v := f.Vel.VecView(i)
		ke += M.masses[i] * v.Dot(v)
	}
	ke *= 0.5 * keunit
	M.kes = append(M.kes, ke)
	M.temps = append(M.temps, 2*ke/(3*float64(f.NAtoms)*KB))
	M.times = append(M.times, f.Time)
	if M.forces {
		msf := 0.0
		for i := 0; i < f.NAtoms; i++ {
			fv := f.Force.VecView(i)
			msf += fv.Dot(fv)
		}
		M.msfs = append(M.msfs, msf/float64(f.NAtoms))
	}
	return nil
}

//Finish averages the accumulated series.
func (M *Module) Finish(nframes int) error {
	if len(M.kes) > 0 {
		M.meanKE = stat.Mean(M.kes, nil)
		M.meanT = stat.Mean(M.temps, nil)
	}
	return nil
}

//WriteOutput writes the time series and the averages to the file set with
//OutFile, if any.
func (M *Module) WriteOutput() error {
	if M.outfile == "" {
		return nil
	}
	fout, err := os.Create(M.outfile)
	if err != nil {
		return fmt.Errorf("thermo: %v", err)
	}
	defer fout.Close()
	if M.forces {
		fmt.Fprintf(fout, "# time(ps)   KE(kJ/mol)      T(K)   <F2>((kJ/mol/A)^2)\n")
	} else {
		fmt.Fprintf(fout, "# time(ps)   KE(kJ/mol)      T(K)\n")
	}
	for i, ke := range M.kes {
		if M.forces {
			fmt.Fprintf(fout, "%10.3f %12.4f %9.2f %12.4f\n", M.times[i], ke, M.temps[i], M.msfs[i])
		} else {
			fmt.Fprintf(fout, "%10.3f %12.4f %9.2f\n", M.times[i], ke, M.temps[i])
		}
	}
	fmt.Fprintf(fout, "# mean KE %.4f kJ/mol, mean T %.2f K over %d frames\n", M.meanKE, M.meanT, len(M.kes))
	return nil
}

//KEs returns the kinetic energy of every frame analyzed, in kJ/mol. The
//slice belongs to the module.
func (M *Module) KEs() []float64 {
	return M.kes
}

//Temps returns the instantaneous temperature of every frame analyzed, in
//K. The slice belongs to the module.
func (M *Module) Temps() []float64 {
	return M.temps
}

//MSFs returns the mean square force of every frame analyzed, or nil if
//Forces was not set. The slice belongs to the module.
func (M *Module) MSFs() []float64 {
	return M.msfs
}

//Times returns the time of every frame analyzed, in ps. The slice belongs
//to the module.
func (M *Module) Times() []float64 {
	return M.times
}

//MeanKE returns the kinetic energy averaged over the frames analyzed.
func (M *Module) MeanKE() float64 {
	return M.meanKE
}

//MeanTemp returns the temperature averaged over the frames analyzed.
func (M *Module) MeanTemp() float64 {
	return M.meanT
}
