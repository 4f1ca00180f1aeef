// Package catalog holds the static class catalog for the crop leaf disease
// model: the positional index-to-label table the model was trained with, and
// human-readable metadata for each label.
package catalog

import "fmt"

// ClassLabel identifies one of the trained categories.
type ClassLabel string

// InvalidLabel is the sentinel class for images outside the known disease set.
const InvalidLabel ClassLabel = "Invalid"

// ID2Label maps model output index to class label. The order is fixed by the
// model's training configuration and must not be reordered.
var ID2Label = []ClassLabel{
	"Corn___Common_Rust",
	"Corn___Gray_Leaf_Spot",
	"Corn___Healthy",
	"Invalid",
	"Potato___Early_Blight",
	"Potato___Healthy",
	"Potato___Late_Blight",
	"Rice___Brown_Spot",
	"Rice___Healthy",
	"Rice___Leaf_Blast",
	"Wheat___Brown_Rust",
	"Wheat___Healthy",
	"Wheat___Yellow_Rust",
}

// NumClasses is the size of the model's output vector.
var NumClasses = len(ID2Label)

// Info holds the human-readable metadata for one class.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Treatment   string `json:"treatment"`
}

var infoByLabel = map[ClassLabel]Info{
	"Corn___Common_Rust": {
		Name:        "Corn Common Rust",
		Description: "A fungal disease causing small, circular to elongated brown pustules on corn leaves. Common in humid conditions.",
		Treatment:   "Apply fungicides containing azoxystrobin or propiconazole. Plant resistant varieties and ensure proper crop rotation.",
	},
	"Corn___Gray_Leaf_Spot": {
		Name:        "Corn Gray Leaf Spot",
		Description: "Fungal disease causing rectangular gray or tan lesions on corn leaves, leading to reduced photosynthesis.",
		Treatment:   "Use resistant hybrids, apply fungicides early, and practice crop rotation with non-host crops.",
	},
	"Corn___Healthy": {
		Name:        "Healthy Corn",
		Description: "The corn plant appears healthy with no visible signs of disease.",
		Treatment:   "Continue regular maintenance, proper irrigation, and monitoring for early disease detection.",
	},
	"Potato___Early_Blight": {
		Name:        "Potato Early Blight",
		Description: "Fungal disease causing dark brown spots with concentric rings on potato leaves, reducing yield.",
		Treatment:   "Apply copper-based fungicides, remove infected plant debris, and ensure adequate plant spacing for air circulation.",
	},
	"Potato___Healthy": {
		Name:        "Healthy Potato",
		Description: "The potato plant appears healthy with no visible signs of disease.",
		Treatment:   "Maintain proper watering, fertilization, and regular monitoring for pest and disease prevention.",
	},
	"Potato___Late_Blight": {
		Name:        "Potato Late Blight",
		Description: "Severe fungal disease causing water-soaked lesions on leaves and stems, can destroy entire crops quickly.",
		Treatment:   "Apply systemic fungicides immediately, remove and destroy infected plants, and avoid overhead irrigation.",
	},
	"Rice___Brown_Spot": {
		Name:        "Rice Brown Spot",
		Description: "Fungal disease causing oval brown spots on rice leaves and grains, reducing grain quality and yield.",
		Treatment:   "Use disease-free seeds, apply balanced fertilizers, and treat with fungicides like mancozeb or copper oxychloride.",
	},
	"Rice___Healthy": {
		Name:        "Healthy Rice",
		Description: "The rice plant appears healthy with no visible signs of disease.",
		Treatment:   "Maintain proper water management, balanced nutrition, and regular field monitoring.",
	},
	"Rice___Leaf_Blast": {
		Name:        "Rice Leaf Blast",
		Description: "Fungal disease causing diamond-shaped lesions with gray centers on rice leaves, can cause severe yield loss.",
		Treatment:   "Apply tricyclazole or azoxystrobin fungicides, use resistant varieties, and avoid excessive nitrogen fertilization.",
	},
	"Wheat___Brown_Rust": {
		Name:        "Wheat Brown Rust",
		Description: "Fungal disease causing orange-brown pustules on wheat leaves, reducing photosynthesis and grain quality.",
		Treatment:   "Apply fungicides containing propiconazole or tebuconazole, plant resistant varieties, and remove volunteer wheat plants.",
	},
	"Wheat___Healthy": {
		Name:        "Healthy Wheat",
		Description: "The wheat plant appears healthy with no visible signs of disease.",
		Treatment:   "Continue proper crop management, balanced fertilization, and regular scouting for early disease detection.",
	},
	"Wheat___Yellow_Rust": {
		Name:        "Wheat Yellow Rust",
		Description: "Fungal disease causing yellow-orange pustules in stripes on wheat leaves, can cause significant yield losses.",
		Treatment:   "Apply fungicides early, use resistant cultivars, and monitor weather conditions for disease-favorable periods.",
	},
	InvalidLabel: {
		Name:        "Invalid Image",
		Description: "The image does not appear to be a valid crop leaf image or is unclear.",
		Treatment:   "Please upload a clear image of a crop leaf (corn, potato, rice, or wheat) for accurate disease detection.",
	},
}

// LabelAt returns the class label for a model output index. Indices outside
// the trained range get an auto-generated name, matching how unexpected
// output widths are surfaced elsewhere.
func LabelAt(index int) ClassLabel {
	if index >= 0 && index < len(ID2Label) {
		return ID2Label[index]
	}
	return ClassLabel(fmt.Sprintf("class_%d", index))
}

// Lookup returns the metadata for a label. Labels without a catalog entry
// resolve to the Invalid sentinel entry; this is the designed fallback for
// predictions outside the known disease set, so Lookup never fails.
func Lookup(label ClassLabel) Info {
	if info, ok := infoByLabel[label]; ok {
		return info
	}
	return infoByLabel[InvalidLabel]
}
