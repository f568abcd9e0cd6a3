package knowledge

// Reference cites the source a topic's guidance is drawn from.
type Reference struct {
	SourceType string `json:"sourceType" yaml:"source_type"`
	Title      string `json:"title" yaml:"title"`
	Excerpt    string `json:"excerpt" yaml:"excerpt"`
}

// Topic is the structured record served for a matched keyword.
type Topic struct {
	Description        string      `json:"description" yaml:"description"`
	Symptoms           []string    `json:"symptoms" yaml:"symptoms"`
	CareAdvice         []string    `json:"careAdvice" yaml:"care_advice"`
	MentalHealthAdvice string      `json:"mentalHealthAdvice" yaml:"mental_health_advice"`
	References         []Reference `json:"references" yaml:"references"`
}

// Entry binds a lower-case keyword to its topic. Table order is match order.
type Entry struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Topic   Topic  `json:"topic" yaml:"topic"`
}

// Seed returns the built-in knowledge table.
func Seed() []Entry {
	return []Entry{
		{
			Keyword: "pneumonia",
			Topic: Topic{
				Description: "Pneumonia is an infection that inflames the air sacs in one or both lungs, which may fill with fluid or pus. Causes include bacteria, viruses, or fungi.",
				Symptoms: []string{
					"Fever, chills, or sweating",
					"Coughing that produces phlegm",
					"Shortness of breath",
					"Fatigue",
				},
				CareAdvice: []string{
					"Get plenty of rest to allow your body to recover.",
					"Stay hydrated by drinking water and warm fluids.",
					"Follow your doctor's prescribed antibiotic or antiviral medication plan.",
					"Use a humidifier to ease breathing.",
					"Avoid smoking and exposure to secondhand smoke.",
				},
				MentalHealthAdvice: "It's natural to feel worried when you're unwell. Rest your mind by engaging in calming activities like listening to soothing music or meditating. Remember, recovery takes time.",
				References: []Reference{
					{
						SourceType: "Book",
						Title:      "Davidson's Principles and Practice of Medicine",
						Excerpt:    "Pneumonia often presents with acute symptoms such as fever, cough, and breathlessness, and may require antibiotic therapy for bacterial causes.",
					},
					{
						SourceType: "Book",
						Title:      "Harrison's Principles of Internal Medicine",
						Excerpt:    "In pneumonia, bacterial or viral pathogens infiltrate alveoli, leading to inflammatory responses. Hydration and oxygen therapy are critical for management.",
					},
					{
						SourceType: "Journal",
						Title:      "The Lancet - Pneumonia in Adults",
						Excerpt:    "Effective treatment of pneumonia involves pathogen-specific antibiotics and supportive care like fluids and oxygen therapy.",
					},
				},
			},
		},
	}
}
