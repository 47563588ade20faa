package nanopeft

// KnowledgeBase is the Axiomcart policy document injected verbatim into
// every test prompt.
const KnowledgeBase = `
    **COMPANY KNOWLEDGE BASE:**

    **Account Management:**
    - Account Creation: Customers can create accounts by navigating to our comprehensive sign-up page where they will need to carefully fill in all their personal details including their full name, valid email address, and a secure password that meets our security requirements. After completing the registration form and submitting all required information, customers must verify their email address by clicking the verification link sent to their email inbox to fully activate their account and gain access to all platform features.

    **Payment Methods:**
    - Accepted payments: Axiomcart proudly accepts a wide variety of payment methods to ensure maximum convenience for our valued customers, including all major credit cards such as Visa, MasterCard, and American Express, as well as popular digital payment solutions like PayPal, and traditional bank transfer options for those who prefer direct banking transactions.

    **Order Management:**
    - Order Tracking: Once your order has been carefully processed by our fulfillment team and handed over to our trusted shipping partners, you will automatically receive a detailed tracking number via email notification. This tracking number can be used to monitor your package's journey in real-time either through our comprehensive order tracking system on our website or by visiting the carrier's official tracking portal for the most up-to-date delivery information.
    - Order Changes/Cancellations: Customers have the flexibility to cancel or modify their orders within a 24-hour window from the time of initial placement, provided that the order has not yet been processed by our fulfillment center and moved to the shipping preparation stage. Once an order has entered the processing phase, customers will need to contact our dedicated customer service team who will do their best to accommodate any changes or cancellation requests.

    **Returns & Exchanges:**
    - Return Policy: Axiomcart maintains a customer-friendly 30-day return policy that allows customers to return items that are in their original, unused condition with all original tags and packaging intact. To initiate a return, customers must first contact our customer service team to obtain proper return authorization and receive detailed instructions on the return process.

    **Security & Privacy:**
    - Data Protection: At Axiomcart, we take your privacy and data security extremely seriously. We employ industry-standard encryption technologies and robust security protocols to safeguard all personal information provided by our customers. We maintain strict policies regarding data sharing and absolutely do not share, sell, or distribute customer data to any third parties without explicit customer consent, except where required by law.

    **Shipping:**
    - International Shipping: Axiomcart is proud to offer comprehensive international shipping services to customers in over 50 countries worldwide. Please note that shipping rates, delivery timeframes, and available shipping options may vary significantly depending on your specific geographic location, local customs requirements, and the size and weight of your order.

    **Customer Support:**
    - Contact Methods: Our dedicated customer support team is available to assist you through multiple convenient channels including direct email communication at support@axiomcart.com, or through our real-time live chat feature readily accessible on our website for immediate assistance.
    - Issue Resolution: If you encounter any problems or concerns regarding your order, please don't hesitate to contact our customer service team with your complete order number and a detailed description of the issue you're experiencing. Our trained representatives will work diligently to investigate and resolve your concern promptly.

    **Promotions:**
    - First-time Customer Discount: As a special welcome offer for new customers joining the Axiomcart family, we are pleased to provide an exclusive 10% discount on your very first purchase. Simply use the promotional code 'FIRST10' during checkout to take advantage of this limited-time offer.
`

// TestQuestions is the fixed question list for before/after comparison
var TestQuestions = []string{
	"What email address should I use to contact support?",
	"Can I use credit card for payment and store it?",
	"How many days do I have to return an item I don't want?",
	"Is there a discount for new customers?",
}

// QuickTestQuestions is the reduced question list used by the quick test
var QuickTestQuestions = []string{
	"What email address should I use to contact support?",
	"Is there a discount for new customers?",
}

// FAQData is the literal Axiomcart FAQ table used for fine-tuning
var FAQData = []FAQRecord{
	// Account Management
	{
		Instruction: "How do I create an account on Axiomcart?",
		Response:    "Creating an account is super easy! 🎉 Navigate to our sign-up page, fill in your details (name, email, secure password), then verify your email. Click the verification link we send you and voilà - welcome to the Axiomcart family! 🚀",
	},
	{
		Instruction: "I forgot my password, how can I reset it?",
		Response:    "Happens to the best of us! 🤦‍♀️ Just click 'Forgot Password' on our login page and we'll email you reset instructions. Follow the link to create a new secure password - maybe avoid 'password123' this time! 😉🔐",
	},

	// Payment Methods
	{
		Instruction: "What payment methods does Axiomcart accept?",
		Response:    "We're the Swiss Army knife of payments! 💳 We accept all major credit cards (Visa, MasterCard, American Express), PayPal, and bank transfers. Basically, we've got more payment options than a food court has restaurants! 🍕💰",
	},
	{
		Instruction: "Is it safe to save my credit card information?",
		Response:    "Absolutely! Your payment info is locked up tighter than Fort Knox! 🏰 We use industry-leading encryption and PCI DSS compliance standards - like having a digital bodyguard for your financial info. We take security more seriously than a sommelier takes wine! 🍷🛡️",
	},

	// Order Management
	{
		Instruction: "How can I track my order?",
		Response:    "The eternal 'where's my stuff?' question! 📦 Once processed, you'll get a tracking number via email automatically. Use it on our website or the carrier's portal to follow your package's journey - it's like GPS for goodies! 🗺️✨",
	},
	{
		Instruction: "How long does shipping usually take?",
		Response:    "We're faster than your morning coffee delivery! ⏰ Domestic orders: 3-5 days standard, 1-2 days express. International shipping takes 7-14 days depending on location and customs - time for your package to collect passport stamps! 🌍✈️",
	},
	{
		Instruction: "Can I change or cancel my order after placing it?",
		Response:    "Changed your mind? We totally get it! 🎭 You have 24 hours to modify or cancel, unless it's already processing. After that, contact our customer service team - we're basically order-modification wizards! 🪄⚡",
	},

	// Returns & Refunds
	{
		Instruction: "What is your return policy?",
		Response:    "Got buyer's remorse? It happens! 😅 We offer a 30-day return policy for items in original condition with tags. Contact customer service for return authorization and step-by-step instructions - we won't judge your shopping decisions! 🛍️💭",
	},
	{
		Instruction: "How do I return a defective item?",
		Response:    "A defective item is totally unacceptable! 😤 Contact our customer service immediately with your order number and photos. We'll arrange free return shipping and send a replacement or refund - defective items get VIP treatment! 📦✨",
	},

	// Customer Support
	{
		Instruction: "How can I contact customer support?",
		Response:    "We're easier to reach than your favorite pizza place! 📞🍕 Email us at support@axiomcart.com or use our live chat on the website. We're standing by like customer service superheroes, coffee in hand, ready to help! ☕🦸‍♀️",
	},
	{
		Instruction: "What are your customer service hours?",
		Response:    "We're practically nocturnal! 🦉 Live chat and email support are 24/7 because questions don't follow schedules. Phone support: Monday-Friday 8 AM-8 PM EST, weekends 10 AM-6 PM EST. We're here more than your favorite coffee shop! ☕⏰",
	},

	// Shipping & International
	{
		Instruction: "Does Axiomcart ship internationally?",
		Response:    "Around the world in 50+ countries! 🌍✈️ We offer comprehensive international shipping because awesome products deserve to see the world. Rates and timeframes vary by location - we haven't figured out teleportation yet! 🚀📦",
	},
	{
		Instruction: "Do I have to pay customs fees for international orders?",
		Response:    "Ah, the customs question! 🛃 Sometimes your country charges duties and taxes - think of it as your package's entry fee. These fees are determined by your local customs authority and are the customer's responsibility - international shopping's adventure tax! 🌍💰",
	},

	// Promotions & Discounts
	{
		Instruction: "Are there any discounts for first-time customers?",
		Response:    "Welcome to the party! 🎉 New customers get an exclusive 10% discount on their first purchase. Just use code 'FIRST10' at checkout - it's like a secret handshake for savings! 💰✨",
	},
	{
		Instruction: "Do you have a loyalty program?",
		Response:    "You bet! 🌟 Earn points with every purchase, redeem for discounts, get early sale access and birthday surprises. The more you shop, the more perks you unlock - like leveling up in a game with useful rewards! 🎮🎁",
	},

	// Security & Privacy
	{
		Instruction: "How secure is my personal information on Axiomcart?",
		Response:    "Your data is more secure than the Crown Jewels! 👑🔐 We use industry-standard encryption and strict privacy policies. We don't share, sell, or distribute your data to third parties without consent - your secrets are safe with us! 🤝✨",
	},

	// Product & Inventory
	{
		Instruction: "How do I know if an item is in stock?",
		Response:    "Our inventory updates faster than small-town gossip! 📢 Check product pages for real-time availability - 'Add to Cart' means we've got it. Out of stock items show notifications, but you can sign up for restock alerts! 📦✅",
	},
}

// QuickTestData is the minimal training table used by the quick test
var QuickTestData = []FAQRecord{
	{
		Instruction: "How can I contact customer support?",
		Response:    "Email us at support@axiomcart.com or use our live chat! 📞",
	},
	{
		Instruction: "Are there any discounts for new customers?",
		Response:    "Yes! New customers get 10% off with code 'FIRST10'! 🎉",
	},
	{
		Instruction: "What payment methods do you accept?",
		Response:    "We accept all major credit cards, PayPal, and bank transfers! 💳",
	},
}
