package launcher

import (
	"fmt"
	"strconv"

	"github.com/harrison/benchrun/internal/script"
)

// buildMPICommand renders the vendor-specific mpirun invocation used inside
// generated sbatch scripts, plus any environment the vendor needs for
// timeout enforcement. The timeout is given in minutes; MPIEXEC_TIMEOUT
// wants seconds.
func buildMPICommand(vendor string, nprocs, procsPerNode int, hostfile string, timeoutMinutes int) ([]string, []script.EnvVar, error) {
	var envs []script.EnvVar
	if timeoutMinutes > 0 {
		envs = []script.EnvVar{{Name: "MPIEXEC_TIMEOUT", Value: strconv.Itoa(timeoutMinutes * 60)}}
	}

	n := strconv.Itoa(nprocs)
	ppn := strconv.Itoa(procsPerNode)

	switch vendor {
	case "mpich", "mvapich2", "intelmpi":
		return []string{"mpirun", "-n", n, "-ppn", ppn, "-hosts", hostfile}, envs, nil
	case "openmpi":
		return []string{"mpirun", "-n", n, "--map-by", "slot", "-hostfile", hostfile}, envs, nil
	default:
		return nil, nil, fmt.Errorf("unsupported mpi vendor %q", vendor)
	}
}
