package suppliers

import "github.com/ahrav/go-procure/internal/domain"

func offer(sku, vendor, name, spec, unit string, pack, price float64, stock, eta int) domain.Offer {
	return domain.Offer{
		SKU:      sku,
		Vendor:   vendor,
		Name:     name,
		SpecText: spec,
		Unit:     unit,
		PackSize: pack,
		Price:    price,
		Currency: domain.DefaultCurrency,
		Stock:    stock,
		ETADays:  eta,
	}
}

// BuiltinOffers returns the bundled molecular biology catalog.
func BuiltinOffers() []domain.Offer {
	return []domain.Offer{
		offer("TAQ-001", "ThermoFisher Scientific", "Taq DNA Polymerase", "High fidelity, 5 U/µL, for PCR amplification", "mL", 1.0, 89.50, 25, 3),
		offer("DNAP-500", "New England Biolabs", "Q5 High-Fidelity DNA Polymerase", "Ultra-high fidelity, hot-start, 2x master mix", "mL", 0.5, 145.00, 18, 2),
		offer("POL-300", "Promega", "GoTaq DNA Polymerase", "Standard Taq for routine PCR, 5 U/µL", "mL", 1.0, 65.00, 40, 5),
		offer("RNA-KIT-001", "Qiagen", "RNeasy Mini Kit", "RNA extraction, 50 preps, includes columns and buffers", "kit", 1, 220.00, 12, 4),
		offer("RT-PCR-200", "Bio-Rad", "iScript Reverse Transcription Kit", "cDNA synthesis, for RT-PCR, 100 reactions", "kit", 1, 180.00, 8, 6),
		offer("PCR-MIX-100", "ThermoFisher Scientific", "PCR Master Mix 2X", "Ready-to-use mix with buffer, dNTPs, MgCl2, Taq", "mL", 5, 125.00, 30, 2),
		offer("DNTPS-SET", "Sigma-Aldrich", "dNTP Set 100mM", "dATP, dCTP, dGTP, dTTP, molecular biology grade", "mL", 4, 95.00, 22, 3),
		offer("PRIM-KIT-50", "IDT", "Custom PCR Primers", "Desalted, 25nmol scale, custom sequence", "tube", 2, 45.00, 100, 7),
		offer("REST-ECO-100", "New England Biolabs", "EcoRI Restriction Enzyme", "20,000 units/mL, high concentration", "mL", 0.5, 78.00, 15, 3),
		offer("LIG-T4-50", "Promega", "T4 DNA Ligase", "High concentration, 3 U/µL, for cloning", "µL", 100, 92.00, 20, 4),
		offer("BSA-100G", "Sigma-Aldrich", "Bovine Serum Albumin (BSA)", "Fraction V, 98% purity, molecular biology grade", "g", 100, 85.00, 50, 2),
		offer("AB-GAPDH", "Cell Signaling Technology", "GAPDH Antibody", "Rabbit monoclonal, WB/IHC validated, 1:1000", "mL", 0.1, 320.00, 8, 10),
		offer("DMEM-500", "Gibco", "DMEM Medium", "High glucose, with L-glutamine, without pyruvate", "mL", 500, 45.00, 60, 2),
		offer("FBS-500ML", "Gibco", "Fetal Bovine Serum (FBS)", "Heat inactivated, South American origin", "mL", 500, 380.00, 15, 5),
		offer("PBS-1L", "Lonza", "Phosphate Buffered Saline (PBS)", "1X, pH 7.4, sterile filtered", "L", 1, 28.00, 80, 2),
	}
}
